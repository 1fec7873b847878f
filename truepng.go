// Copyright 2018 Axel Wagner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command truepng writes truecolor PNG images of random noise or of a
// framebuffer device, or serves them over HTTP.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"sync"

	"github.com/Merovius/truepng/internal/fb"
	"github.com/Merovius/truepng/internal/png"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "out.png", "File to write, - for stdout")
	size := flag.Int("size", 2048, "Width and height of the random image")
	seed := flag.Int64("seed", 1, "Seed for the random image")
	device := flag.String("device", "", "Framebuffer device to capture instead of random pixels")
	compression := flag.String("compression", "default", "One of default, best, speed, none or stored")
	listen := flag.String("listen", "", "Serve images over HTTP on the given address instead of writing a file")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("usage: truepng [<flags>]")
	}

	c, err := parseCompression(*compression)
	if err != nil {
		return err
	}
	enc := &png.Encoder{Compressor: c}

	var src source
	if *device != "" {
		d, err := fb.Open(*device)
		if err != nil {
			return err
		}
		defer d.Close()
		src = d
	} else {
		if *size <= 0 {
			return fmt.Errorf("invalid size %d", *size)
		}
		src = &noise{rnd: rand.New(rand.NewSource(*seed)), size: *size}
	}

	if *listen != "" {
		http.Handle("/", &handler{src: src, enc: enc})
		return http.ListenAndServe(*listen, nil)
	}
	return writeFile(*out, src, enc)
}

func parseCompression(s string) (png.Compressor, error) {
	switch s {
	case "default":
		return png.Zlib{Level: png.DefaultCompression}, nil
	case "best":
		return png.Zlib{Level: png.BestCompression}, nil
	case "speed":
		return png.Zlib{Level: png.BestSpeed}, nil
	case "none":
		return png.Zlib{Level: png.NoCompression}, nil
	case "stored":
		return png.Stored{}, nil
	}
	return nil, fmt.Errorf("unknown compression %q", s)
}

// source produces the pixels to encode.
type source interface {
	Grid() (png.Grid, error)
}

// noise generates random images, each component uniform in [0, 255).
type noise struct {
	mu   sync.Mutex
	rnd  *rand.Rand
	size int
}

func (n *noise) Grid() (png.Grid, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	g := png.NewGrid(n.size, n.size)
	for _, row := range g {
		for x := range row {
			row[x] = png.RGB{uint8(n.rnd.Intn(255)), uint8(n.rnd.Intn(255)), uint8(n.rnd.Intn(255))}
		}
	}
	return g, nil
}

func writeFile(name string, src source, enc *png.Encoder) error {
	g, err := src.Grid()
	if err != nil {
		return err
	}
	b, err := enc.Encode(g)
	if err != nil {
		return err
	}
	if name == "-" {
		_, err = os.Stdout.Write(b)
		return err
	}
	if err := os.WriteFile(name, b, 0644); err != nil {
		return err
	}
	log.Printf("wrote %s (%d bytes)", name, len(b))
	return nil
}

type handler struct {
	src source
	enc *png.Encoder
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Println(r.Method, r.URL.Path)
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/snapshot.png":
		h.serveSnapshot(w, r)
	case "/video":
		h.serveVideo(w, r)
	default:
		http.Error(w, fmt.Sprintf("%q not found", r.URL.Path), http.StatusNotFound)
	}
}

func (h *handler) encode() ([]byte, error) {
	g, err := h.src.Grid()
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return h.enc.Encode(g)
}

func (h *handler) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	b, err := h.encode()
	if err != nil {
		log.Println(err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(b)
}

func (h *handler) serveVideo(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Println("Not a flusher")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace;boundary=endofsection")
	w.WriteHeader(http.StatusOK)

	mpw := multipart.NewWriter(w)
	mpw.SetBoundary("endofsection")
	hdr := make(textproto.MIMEHeader)
	hdr.Add("Content-Type", "image/png")
	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}
		b, err := h.encode()
		if err != nil {
			log.Println(err)
			return
		}
		part, err := mpw.CreatePart(hdr)
		if err != nil {
			log.Println(err)
			return
		}
		if _, err := part.Write(b); err != nil {
			log.Println(err)
			return
		}
		flusher.Flush()
	}
}

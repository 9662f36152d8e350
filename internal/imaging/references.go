package imaging

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNoReferences is returned by Random when no images were loaded.
var ErrNoReferences = errors.New("reference image cache is empty")

var referenceMimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// Reference is one cached target image.
type Reference struct {
	Name    string
	DataURI string
}

// References is an in-memory set of batyr portraits used as face-swap
// targets. It is filled once by Load and read-only afterwards.
type References struct {
	mu     sync.Mutex
	images []Reference
	rnd    *rand.Rand
}

func NewReferences(seed int64) *References {
	return &References{rnd: rand.New(rand.NewSource(seed))}
}

// Load reads every supported image in dir. Unreadable files are logged
// and skipped; a missing directory is an error.
func (r *References) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read reference directory %s: %w", dir, err)
	}

	var loaded []Reference
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		mimeType, ok := referenceMimeTypes[strings.ToLower(filepath.Ext(entry.Name()))]
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Printf("References: skipping %s: %v", entry.Name(), err)
			continue
		}
		loaded = append(loaded, Reference{Name: entry.Name(), DataURI: DataURI(mimeType, data)})
	}

	r.mu.Lock()
	r.images = loaded
	r.mu.Unlock()

	log.Printf("References: cached %d images from %s", len(loaded), dir)
	return nil
}

// Random returns the data URI of a randomly chosen reference image.
func (r *References) Random() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.images) == 0 {
		return "", ErrNoReferences
	}
	return r.images[r.rnd.Intn(len(r.images))].DataURI, nil
}

// Len returns the number of cached images.
func (r *References) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.images)
}

package storage

import (
	"compress/gzip"
	"io"
	"log"
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/schollz/performer/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	mu           sync.Mutex
	timer        *time.Timer
	debounceTime = 1 * time.Second
)

// AutoSave schedules a debounced snapshot save; rapid edits collapse into
// one write.
func AutoSave(p *model.Project, path string) {
	mu.Lock()
	defer mu.Unlock()

	if timer != nil {
		timer.Stop()
	}

	timer = time.AfterFunc(debounceTime, func() {
		go func() {
			startTime := time.Now()
			if err := SaveSnapshot(p.Clone(), path); err != nil {
				log.Printf("autosave failed: %v", err)
				return
			}
			log.Printf("autosaved in %d ms", time.Since(startTime).Milliseconds())
		}()
	})
}

// SaveSnapshot writes the project as gzipped JSON.
func SaveSnapshot(p *model.Project, path string) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)
	defer gzWriter.Close()

	_, err = gzWriter.Write(data)
	return err
}

// LoadSnapshot reads a gzipped JSON project snapshot.
func LoadSnapshot(path string) (*model.Project, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer gzReader.Close()

	data, err := io.ReadAll(gzReader)
	if err != nil {
		return nil, err
	}

	p := model.NewProject()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SaveProjectFile writes the binary device format to path.
func SaveProjectFile(p *model.Project, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteProject(file, p)
}

// LoadProjectFile reads the binary device format from path.
func LoadProjectFile(path string) (*model.Project, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadProject(file)
}

// SaveSettingsFile writes the settings file to path.
func SaveSettingsFile(s *Settings, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteSettings(file, s)
}

// LoadSettingsFile reads the settings file from path.
func LoadSettingsFile(path string) (*Settings, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadSettings(file)
}

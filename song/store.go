package song

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"go-acordeon/catalog"
)

// ErrNotFound is returned when no file exists for a song id
var ErrNotFound = errors.New("song not found")

// Info summarizes a stored song (for listing)
type Info struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
	Notes  int    `json:"notes"`
	Format string `json:"format"`
}

var extensions = []string{".json", ".yaml", ".yml"}

// SongsDir returns the default songs directory path
func SongsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-acordeon", "songs"), nil
}

// Store reads and writes song files in a directory
type Store struct {
	Dir     string
	Catalog *catalog.Catalog
}

func NewStore(dir string, cat *catalog.Catalog) *Store {
	return &Store{Dir: dir, Catalog: cat}
}

// DefaultStore opens the songs directory under the user's config dir
func DefaultStore(cat *catalog.Catalog) (*Store, error) {
	dir, err := SongsDir()
	if err != nil {
		return nil, err
	}
	return NewStore(dir, cat), nil
}

// List returns every readable song, sorted by id. Unreadable files are skipped.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, err
	}

	var infos []Info
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !isSongExt(ext) {
			continue
		}
		sng, err := s.readFile(filepath.Join(s.Dir, entry.Name()))
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			ID:     sng.ID,
			Title:  sng.Title,
			Artist: sng.Artist,
			Notes:  len(sng.Notes),
			Format: strings.TrimPrefix(ext, "."),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// Load reads a song and validates it against the catalog. A malformed note
// fails the whole load with a *ContentError naming it.
func (s *Store) Load(id string) (*Song, error) {
	path, err := s.find(id)
	if err != nil {
		return nil, err
	}

	sng, err := s.readFile(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(sng.Notes, s.Catalog); err != nil {
		return nil, errors.Wrapf(err, "song %s", id)
	}
	return sng, nil
}

// Save writes a song as JSON
func (s *Store) Save(sng *Song) error {
	if sng.ID == "" {
		return errors.New("song has no id")
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(sng, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.Dir, sanitizeFilename(sng.ID)+".json"), data, 0644)
}

// Delete removes every file stored for id
func (s *Store) Delete(id string) error {
	path, err := s.find(id)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (s *Store) find(id string) (string, error) {
	base := sanitizeFilename(id)
	for _, ext := range extensions {
		path := filepath.Join(s.Dir, base+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.Wrapf(ErrNotFound, "song %s", id)
}

func (s *Store) readFile(path string) (*Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sng, err := Decode(f, filepath.Ext(path))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", filepath.Base(path))
	}
	if sng.ID == "" {
		sng.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sng, nil
}

// Decode parses a song in the format named by ext (".json", ".yaml", ".yml")
func Decode(r io.Reader, ext string) (*Song, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var sng Song
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &sng)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&sng)
	}
	if err != nil {
		return nil, err
	}
	return &sng, nil
}

func isSongExt(ext string) bool {
	for _, e := range extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	name = strings.ReplaceAll(name, ":", "-")
	for _, c := range []string{"*", "?", "\"", "<", ">", "|"} {
		name = strings.ReplaceAll(name, c, "")
	}
	return name
}

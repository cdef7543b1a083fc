package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanshika/graphrepo/internal/service"
)

// Dataset file names inside a dataset directory.
const (
	UsersFile       = "users.json"
	CinemasFile     = "cinemas.json"
	FriendshipsFile = "friendships.json"
	VisitsFile      = "visits.json"
)

// ErrMissingDataset is returned when a dataset directory lacks users.json.
var ErrMissingDataset = errors.New("dataset not found")

// WriteDataset serializes the dataset into one JSON file per section under dir.
func WriteDataset(dataset service.Dataset, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	sections := []struct {
		file string
		data any
	}{
		{UsersFile, dataset.Users},
		{CinemasFile, dataset.Cinemas},
		{FriendshipsFile, dataset.Friendships},
		{VisitsFile, dataset.Visits},
	}
	for _, s := range sections {
		if err := writeJSON(filepath.Join(dir, s.file), s.data); err != nil {
			return err
		}
	}
	return nil
}

// ReadDataset loads a directory written by WriteDataset. Only users.json is
// required; missing relationship files leave their sections empty.
func ReadDataset(dir string) (service.Dataset, error) {
	var ds service.Dataset
	usersPath := filepath.Join(dir, UsersFile)
	if _, err := os.Stat(usersPath); err != nil {
		return ds, fmt.Errorf("%w: %s", ErrMissingDataset, usersPath)
	}

	sections := []struct {
		file   string
		target any
	}{
		{UsersFile, &ds.Users},
		{CinemasFile, &ds.Cinemas},
		{FriendshipsFile, &ds.Friendships},
		{VisitsFile, &ds.Visits},
	}
	for _, s := range sections {
		path := filepath.Join(dir, s.file)
		if err := readJSON(path, s.target); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return service.Dataset{}, err
		}
	}
	return ds, nil
}

func writeJSON(path string, data any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, target any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

package profiles

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"
)

// ExcludedProfiles is the moderation list of profiles hidden from matching.
type ExcludedProfiles struct {
	Items []*ExcludedProfile
}

type ExcludedProfile struct {
	ID         string
	Reason     string
	ExcludedAt time.Time
}

// GetExcludedProfilesFromFile loads the exclusion list. A missing or empty file
// is an empty list.
func GetExcludedProfilesFromFile(path string) (*ExcludedProfiles, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &ExcludedProfiles{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedProfiles{}, nil
	}

	var excluded ExcludedProfiles
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

// Add appends id unless it is already listed. It reports whether the list changed.
func (e *ExcludedProfiles) Add(id, reason string) bool {
	for _, item := range e.Items {
		if item.ID == id {
			return false
		}
	}
	e.Items = append(e.Items, &ExcludedProfile{
		ID:         id,
		Reason:     reason,
		ExcludedAt: time.Now().UTC(),
	})
	return true
}

func (e *ExcludedProfiles) IDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (e *ExcludedProfiles) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

package vfs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind tags a filesystem entry.
type Kind int

const (
	KindFolder Kind = iota
	KindFile
	// KindLink is reserved; nothing creates links yet.
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	case KindLink:
		return "link"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	if k < KindFolder || k > KindLink {
		return nil, fmt.Errorf("vfs: unknown entry kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "folder":
		*k = KindFolder
	case "file":
		*k = KindFile
	case "link":
		*k = KindLink
	default:
		return fmt.Errorf("vfs: unknown entry kind %q", string(b))
	}
	return nil
}

// Metadata is carried by every entry. Times are unix milliseconds.
type Metadata struct {
	Name       string `json:"name"`
	CreatedAt  int64  `json:"created_at"`
	ModifiedAt int64  `json:"modified_at"`
	IsHidden   bool   `json:"is_hidden"`
}

// Entry is one stored filesystem object. Path is its identity.
type Entry struct {
	UID      string   `json:"uid"`
	Path     string   `json:"abs_path"`
	Kind     Kind     `json:"kind"`
	Metadata Metadata `json:"metadata"`
	Contents []byte   `json:"contents,omitempty"`
	Digest   string   `json:"digest,omitempty"`
	Target   string   `json:"target,omitempty"`
}

func (e Entry) IsFolder() bool { return e.Kind == KindFolder }

func (e Entry) Modified() time.Time { return time.UnixMilli(e.Metadata.ModifiedAt) }

// Display renders the entry the way ls lists it.
func (e Entry) Display() string {
	switch e.Kind {
	case KindLink:
		return e.Path + "@"
	default:
		return e.Path
	}
}

func (e Entry) encode() ([]byte, error) {
	return json.Marshal(e)
}

func decodeEntry(doc []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(doc, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// isHiddenName reports whether a base name is hidden by convention.
func isHiddenName(name string) bool {
	return strings.HasPrefix(name, ".")
}

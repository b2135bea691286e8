// Package pagesource enumerates and reads the disk pages used to seed cache
// buffers.
//
// The cache only ever reads pages; write performance is someone else's
// problem.
package pagesource

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Page is one discovered page file.
type Page struct {
	Filespec string
	Size     int64
}

// Set is the result of a [Scan]: the page inventory plus dataset totals.
type Set struct {
	Pages        []Page
	DatasetSize  int64
	SmallestPage int64
	BiggestPage  int64
}

// Limits bounds a scan. The zero value means unbounded.
type Limits struct {
	// MaxPages caps the number of pages collected.
	MaxPages int
	// MaxDataset caps the cumulative byte size of collected pages; pages
	// that would exceed it are skipped.
	MaxDataset int64
}

// Scan recursively walks root collecting every non-empty file as a page.
//
// Pages are collected in walk order until the limits are hit. A root with no
// pages at all is an error: there is nothing to cache.
func Scan(root string, lim Limits) (*Set, error) {
	set := Set{SmallestPage: -1}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		sz := info.Size()
		if sz == 0 {
			// Nothing to cache.
			return nil
		}
		if lim.MaxPages > 0 && len(set.Pages) >= lim.MaxPages {
			return fs.SkipAll
		}
		if lim.MaxDataset > 0 && set.DatasetSize+sz > lim.MaxDataset {
			return nil
		}
		set.Pages = append(set.Pages, Page{Filespec: path, Size: sz})
		set.DatasetSize += sz
		if set.BiggestPage < sz {
			set.BiggestPage = sz
		}
		if set.SmallestPage < 0 || set.SmallestPage > sz {
			set.SmallestPage = sz
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pagesource: scanning %q: %w", root, err)
	}
	if len(set.Pages) == 0 {
		return nil, fmt.Errorf("pagesource: no pages found under %q", root)
	}
	return &set, nil
}

// Read returns the bytes of one page.
func Read(filespec string) ([]byte, error) {
	b, err := os.ReadFile(filespec)
	if err != nil {
		return nil, fmt.Errorf("pagesource: reading %q: %w", filespec, err)
	}
	return b, nil
}

// Package localassets resolves asset queries against a directory of media
// files by matching query words to file names.
package localassets

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/forPelevin/roughcut/internal/ports"
	"github.com/forPelevin/roughcut/internal/types"
)

var extKinds = map[string]string{
	".jpg": types.AssetKindImage, ".jpeg": types.AssetKindImage, ".png": types.AssetKindImage,
	".webp": types.AssetKindImage, ".gif": types.AssetKindImage,
	".mp4": types.AssetKindVideo, ".mov": types.AssetKindVideo, ".webm": types.AssetKindVideo,
	".mkv": types.AssetKindVideo,
}

type entry struct {
	path   string
	kind   string
	tokens map[string]bool
}

type Adapter struct {
	root string

	once  sync.Once
	index []entry
	err   error
}

var _ ports.AssetProvider = (*Adapter)(nil)

func New(root string) *Adapter {
	return &Adapter{root: root}
}

func (a *Adapter) Name() string { return "local" }

// Search returns the file of the requested kind sharing the most words with
// query, or nil when nothing matches. The directory is indexed once.
func (a *Adapter) Search(ctx context.Context, query, kind string) (*types.AssetMedia, error) {
	a.once.Do(a.load)
	if a.err != nil {
		return nil, a.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := tokens(query)
	if len(words) == 0 {
		return nil, nil
	}

	var best *entry
	bestScore := 0
	for i := range a.index {
		e := &a.index[i]
		if kind != "" && e.kind != kind {
			continue
		}
		score := 0
		for w := range words {
			if e.tokens[w] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = e, score
		}
	}
	if best == nil {
		return nil, nil
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(best.path)}
	return &types.AssetMedia{URL: u.String(), License: "local"}, nil
}

func (a *Adapter) load() {
	root, err := filepath.Abs(a.root)
	if err != nil {
		a.err = fmt.Errorf("assets dir: %w", err)
		return
	}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		kind, ok := extKinds[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}
		name := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		a.index = append(a.index, entry{path: path, kind: kind, tokens: tokens(name)})
		return nil
	})
	if err != nil {
		a.err = fmt.Errorf("index assets dir %s: %w", a.root, err)
	}
}

func tokens(s string) map[string]bool {
	out := map[string]bool{}
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(f)) >= 3 {
			out[f] = true
		}
	}
	return out
}

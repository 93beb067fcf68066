package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/artifacts"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
)

// File saves non-empty results as an indented JSON array under the matches dir.
type File struct {
	store *artifacts.Store
	out   io.Writer
}

// NewFile creates the sink. The saved path is announced on out when it is not nil.
func NewFile(store *artifacts.Store, out io.Writer) *File {
	return &File{store: store, out: out}
}

func (f *File) Name() string { return "file" }

func (f *File) Write(_ context.Context, run RunInfo, matches []models.Match) error {
	if len(matches) == 0 {
		slog.Info("File: nothing to save")
		return nil
	}
	path := f.store.MatchesPath(run.Method, run.At)
	if err := artifacts.SaveJSON(path, matches); err != nil {
		return fmt.Errorf("save matches: %v: %w", err, models.ErrPersistenceFailure)
	}
	slog.Info("File: matches saved", "path", path, "count", len(matches))
	if f.out != nil {
		fmt.Fprintf(f.out, "Matches saved to: %s\n", path)
	}
	return nil
}

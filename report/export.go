package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

// GameParams records the learning-loop parameters in effect for an
// analysis session.
type GameParams struct {
	Rounds  int     `json:"rounds_per_call"`
	Samples int     `json:"simulations_per_strategy"`
	Horizon float64 `json:"horizon"`
}

// Archive is the exported analysis document: the learner's final state
// plus the full diagnostic series a convergence chart plots.
type Archive struct {
	CreatedAt        time.Time          `json:"created_at"`
	GameParams       GameParams         `json:"game_params"`
	TotalIterations  int                `json:"total_iterations"`
	CumulativeRegret float64            `json:"cumulative_regret"`
	AveragePolicy    map[string]float64 `json:"average_policy"`
	NashDistance     float64            `json:"nash_distance"`
	RegretHistory    []float64          `json:"regret_history"`
	DistanceHistory  []float64          `json:"convergence_history"`
}

// ExportArchive writes the archive as zstd-compressed JSON under dir with
// a timestamped name and returns the written path.
func ExportArchive(dir string, archive Archive) (string, error) {
	if archive.CreatedAt.IsZero() {
		archive.CreatedAt = time.Now().UTC()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	name := fmt.Sprintf("cfr_data_%s.json.zst", archive.CreatedAt.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return "", fmt.Errorf("init zstd writer: %w", err)
	}

	if err := json.NewEncoder(enc).Encode(archive); err != nil {
		_ = enc.Close()
		return "", fmt.Errorf("encode archive: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("flush archive: %w", err)
	}
	return path, nil
}

// ReadArchive loads an exported archive back.
func ReadArchive(path string) (Archive, error) {
	var archive Archive
	f, err := os.Open(path)
	if err != nil {
		return archive, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return archive, fmt.Errorf("init zstd reader: %w", err)
	}
	defer dec.Close()

	if err := json.NewDecoder(dec).Decode(&archive); err != nil {
		return archive, fmt.Errorf("decode archive: %w", err)
	}
	return archive, nil
}

package backfill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ava-labs/orderfill-indexer/internal/types"
)

// ReadFile decodes the tx_responses of one page file or full search response dump.
func ReadFile(path string) ([]types.TxResponse, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var res types.TxSearchResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return res.TxResponses, nil
}

// ReadDir reads every *.json file in dir in lexical order.
func ReadDir(dir string) ([]types.TxResponse, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(paths)

	var all []types.TxResponse
	for _, p := range paths {
		txs, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		all = append(all, txs...)
	}
	return all, nil
}

// Read reads file when set, otherwise dir.
func Read(file, dir string) ([]types.TxResponse, error) {
	switch {
	case file != "":
		return ReadFile(file)
	case dir != "":
		return ReadDir(dir)
	default:
		return nil, fmt.Errorf("either a file or a directory is required")
	}
}

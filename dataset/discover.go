package dataset

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DiscoverArchives returns sorted absolute paths to .tar.gz archives beneath
// root. Deployments that pre-shard data per client map the cid-th client to
// the cid-th archive instead of filtering a shared archive by batch index.
func DiscoverArchives(root string) ([]string, error) {
	archives := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".tar.gz") {
			archives = append(archives, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dataset: discover archives: %w", err)
	}
	sort.Strings(archives)
	return archives, nil
}

package keypool

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	keyFilePrefix = "keys_pool_"
	keyFileSuffix = ".env"
)

// LoadDir seeds the pool from flat credential files in dir, one file per
// provider named keys_pool_<provider>.env, one secret per line. Blank
// lines and # comments are skipped. File order becomes FIFO order.
func (p *Pool) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read keys dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, keyFilePrefix) || !strings.HasSuffix(name, keyFileSuffix) {
			continue
		}
		provider := strings.TrimSuffix(strings.TrimPrefix(name, keyFilePrefix), keyFileSuffix)
		if provider == "" {
			continue
		}
		if err := p.loadFile(provider, filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) loadFile(provider, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read key file for %s: %w", provider, err)
	}

	count := 0
	for _, line := range strings.Split(string(data), "\n") {
		secret := strings.TrimSpace(line)
		if secret == "" || strings.HasPrefix(secret, "#") {
			continue
		}
		p.Seed(provider, secret)
		count++
	}
	p.opts.Logger.Info("credentials loaded", "provider", provider, "count", count)
	return nil
}

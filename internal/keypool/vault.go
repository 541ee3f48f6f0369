package keypool

import (
	"context"
	"fmt"
	"sort"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig holds configuration for seeding credentials from Vault.
// Secrets live under <mount_path>/<provider> with one field per key;
// field values are the upstream secrets. Field names sort the seeding
// order so rotation stays deterministic across restarts.
type VaultConfig struct {
	Address   string
	Token     string
	MountPath string
}

// LoadVault seeds the pool from a Vault KV mount, one secret path per
// provider. Missing paths are skipped silently so a partially populated
// mount still seeds what it has.
func (p *Pool) LoadVault(ctx context.Context, cfg VaultConfig, providers []string) error {
	vConfig := vault.DefaultConfig()
	vConfig.Address = cfg.Address

	client, err := vault.NewClient(vConfig)
	if err != nil {
		return fmt.Errorf("create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	mount := strings.TrimSuffix(cfg.MountPath, "/")
	for _, provider := range providers {
		secret, err := client.Logical().ReadWithContext(ctx, mount+"/"+provider)
		if err != nil {
			return fmt.Errorf("read vault path for %s: %w", provider, err)
		}
		if secret == nil || secret.Data == nil {
			continue
		}

		fields := make([]string, 0, len(secret.Data))
		for k := range secret.Data {
			fields = append(fields, k)
		}
		sort.Strings(fields)

		count := 0
		for _, k := range fields {
			v, ok := secret.Data[k].(string)
			if !ok || strings.TrimSpace(v) == "" {
				continue
			}
			p.Seed(provider, strings.TrimSpace(v))
			count++
		}
		p.opts.Logger.Info("credentials loaded from vault", "provider", provider, "count", count)
	}
	return nil
}

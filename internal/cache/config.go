package cache

import "github.com/rawblock/txscan-engine/internal/config"

// NamespacesFromConfig adapts the loaded config's namespace table into
// the Namespace values Cache operates on.
func NamespacesFromConfig(cfg map[string]config.CacheNamespaceConfig) map[string]Namespace {
	out := make(map[string]Namespace, len(cfg))
	for name, nc := range cfg {
		out[name] = Namespace{
			Name:      name,
			TTL:       nc.TTL,
			KeyPrefix: nc.KeyPrefix,
			Compress:  nc.Compress,
		}
	}
	return out
}

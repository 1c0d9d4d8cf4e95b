package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/target/jobrelay/config"
)

var (
	errNoClusterNodes  = errors.New("redis cluster mode needs CLUSTER_NODES or a URI")
	errNoSentinelNodes = errors.New("redis sentinel mode needs at least one sentinel node")
	errNoRedisURI      = errors.New("redis URI is empty")
)

// redisUniversalOptions maps the Redis config onto go-redis universal options.
// The returned target is a credential-free description for logs.
func redisUniversalOptions(cfg config.RedisConfig) (*redis.UniversalOptions, string, error) {
	switch {
	case cfg.UseCluster:
		return clusterOptions(cfg)
	case cfg.UseSentinel:
		return sentinelOptions(cfg)
	default:
		return standaloneOptions(cfg)
	}
}

func clusterOptions(cfg config.RedisConfig) (*redis.UniversalOptions, string, error) {
	opts := &redis.UniversalOptions{
		Addrs:         compactAddrs(cfg.ClusterNodes),
		Password:      cfg.Password,
		IsClusterMode: true,
	}
	if len(opts.Addrs) == 0 {
		// A single configuration endpoint given as URI is enough for managed clusters.
		uri := strings.TrimSpace(cfg.URI)
		if uri == "" {
			return nil, "", errNoClusterNodes
		}
		if err := applyURI(opts, uri); err != nil {
			return nil, "", fmt.Errorf("parse redis cluster uri: %w", err)
		}
		opts.DB = 0
	}
	return opts, "cluster:" + strings.Join(opts.Addrs, ","), nil
}

func sentinelOptions(cfg config.RedisConfig) (*redis.UniversalOptions, string, error) {
	nodes := compactAddrs(cfg.SentinelNodes)
	if len(nodes) == 0 {
		return nil, "", errNoSentinelNodes
	}
	return &redis.UniversalOptions{
		Addrs:            nodes,
		MasterName:       cfg.SentinelMasterName,
		Password:         cfg.Password,
		SentinelPassword: cfg.SentinelPassword,
		DB:               cfg.DB,
	}, "sentinel:" + cfg.SentinelMasterName, nil
}

func standaloneOptions(cfg config.RedisConfig) (*redis.UniversalOptions, string, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, "", errNoRedisURI
	}
	opts := &redis.UniversalOptions{Password: cfg.Password, DB: cfg.DB}
	if err := applyURI(opts, uri); err != nil {
		return nil, "", fmt.Errorf("parse redis uri: %w", err)
	}
	return opts, opts.Addrs[0], nil
}

// applyURI fills address, credentials and TLS from a redis:// or rediss:// URL,
// or uses a bare host:port as is. URL credentials win over configured ones.
func applyURI(opts *redis.UniversalOptions, uri string) error {
	if !strings.HasPrefix(uri, "redis://") && !strings.HasPrefix(uri, "rediss://") {
		opts.Addrs = []string{uri}
		return nil
	}
	parsed, err := redis.ParseURL(uri)
	if err != nil {
		return err
	}
	opts.Addrs = []string{parsed.Addr}
	opts.Username = parsed.Username
	if parsed.Password != "" {
		opts.Password = parsed.Password
	}
	opts.DB = parsed.DB
	opts.TLSConfig = parsed.TLSConfig
	return nil
}

func compactAddrs(raw []string) []string {
	addrs := make([]string, 0, len(raw))
	for _, a := range raw {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

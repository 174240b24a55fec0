package config

import (
	"os"
	"strings"
)

// loadProviderSecrets scans the environment for PROVIDER_SECRETS_<TAG>
// variables and splits each into a per-provider credential list, keyed by
// the lowercased upstream tag. Unlike the fixed struct fields above, the
// set of providers is open-ended (one per catalog upstreamTag), so these
// cannot be declared as static struct fields.
func loadProviderSecrets() map[string][]string {
	out := make(map[string][]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, providerSecretEnvPrefix) {
			continue
		}
		tag := strings.ToLower(strings.TrimPrefix(key, providerSecretEnvPrefix))
		if tag == "" {
			continue
		}
		var secrets []string
		for _, s := range strings.Split(value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				secrets = append(secrets, s)
			}
		}
		out[tag] = secrets
	}
	return out
}

package instance

import "os"

var idEnvKeys = []string{"WALLETCORE_INSTANCE_ID", "DYNO", "WORKER_ID"}

// GetID identifies the running process in logs and lock values. It falls
// back to the hostname, then to "local".
func GetID() string {
	for _, key := range idEnvKeys {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}

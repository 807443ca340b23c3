package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// envPrefix namespaces every variable read by parseEnv.
const envPrefix = "IMAGEHOST_"

// parseEnv overlays IMAGEHOST_* environment variables. A .env file in the
// working directory is loaded first when present; variables already set in
// the real environment win over the file.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	lookupString("ADDR", &config.EndpointAddrHTTP)
	lookupString("PUBLIC_BASE_URL", &config.PublicBaseURL)
	lookupString("DATABASE_DSN", &config.DatabaseDSN)
	lookupString("SECRET_KEY", &config.SecretKey)
	lookupString("BLOB_DRIVER", &config.BlobDriver)
	lookupString("S3_ROOT_USER", &config.S3RootUser)
	lookupString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	lookupString("S3_BUCKET", &config.S3Bucket)
	lookupString("S3_REGION", &config.S3Region)
	lookupString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	lookupString("MEDIA_ROOT", &config.MediaRoot)
	lookupString("DEFAULT_TIER", &config.DefaultTier)
	lookupString("LOG_LEVEL", &config.LogLevel)

	lookupBool("S3_USE_SSL", &config.S3UseSSL)
	lookupBool("NATIVE_HEIGHT_NEEDS_THUMBNAIL_PERK", &config.NativeHeightNeedsThumbnailPerk)
	lookupBool("METRICS_ENABLED", &config.MetricsEnabled)

	if v, ok := os.LookupEnv(envPrefix + "MAX_UPLOAD_SIZE"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.MaxUploadSize = n
		}
	}
}

func lookupString(key string, dst *string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		*dst = v
	}
}

func lookupBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

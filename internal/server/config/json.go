package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/dmitrijs2005/imagehost/internal/flagx"
	"github.com/dmitrijs2005/imagehost/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Pointer fields tell
// "absent" apart from zero values so a partial file only overrides what it
// names. ThumbnailPerks keys are heights written as strings.
type JsonConfig struct {
	EndpointAddrHTTP             string            `json:"endpoint_addr_http"`
	PublicBaseURL                string            `json:"public_base_url"`
	DatabaseDSN                  string            `json:"database_dsn"`
	SecretKey                    string            `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration   `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration   `json:"refresh_token_validity_duration"`
	BlobDriver                   string            `json:"blob_driver"`
	S3RootUser                   string            `json:"s3_root_user"`
	S3RootPassword               string            `json:"s3_root_password"`
	S3Bucket                     string            `json:"s3_bucket"`
	S3Region                     string            `json:"s3_region"`
	S3BaseEndpoint               string            `json:"s3_base_endpoint"`
	S3UseSSL                     *bool             `json:"s3_use_ssl"`
	MediaRoot                    string            `json:"media_root"`
	LinkMinDuration              *timex.Duration   `json:"link_min_duration"`
	LinkMaxDuration              *timex.Duration   `json:"link_max_duration"`
	SweepInterval                *timex.Duration   `json:"sweep_interval"`
	OriginalImagePerk            string            `json:"original_image_perk"`
	ExpiringLinkPerk             string            `json:"expiring_link_perk"`
	ThumbnailPerks               map[string]string `json:"thumbnail_perks"`
	NativeHeightNeedsThumbnail   *bool             `json:"native_height_needs_thumbnail_perk"`
	DefaultTier                  *string           `json:"default_tier"`
	MaxUploadSize                *int64            `json:"max_upload_size"`
	RenditionCacheSize           *int              `json:"rendition_cache_size"`
	LogLevel                     string            `json:"log_level"`
	MetricsEnabled               *bool             `json:"metrics_enabled"`
}

// parseJson loads the file named by -c/-config into config. Without the
// flag nothing happens. An unreadable or malformed file panics, matching
// the flag parser: a server must not start on half a config.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if err := c.apply(config); err != nil {
		panic(err)
	}
}

func (c *JsonConfig) apply(config *Config) error {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.PublicBaseURL, c.PublicBaseURL)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.BlobDriver, c.BlobDriver)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.MediaRoot, c.MediaRoot)
	setString(&config.OriginalImagePerk, c.OriginalImagePerk)
	setString(&config.ExpiringLinkPerk, c.ExpiringLinkPerk)
	setString(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.LinkMinDuration != nil {
		config.LinkMinDuration = c.LinkMinDuration.Duration
	}
	if c.LinkMaxDuration != nil {
		config.LinkMaxDuration = c.LinkMaxDuration.Duration
	}
	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.S3UseSSL != nil {
		config.S3UseSSL = *c.S3UseSSL
	}
	if c.NativeHeightNeedsThumbnail != nil {
		config.NativeHeightNeedsThumbnailPerk = *c.NativeHeightNeedsThumbnail
	}
	if c.DefaultTier != nil {
		config.DefaultTier = *c.DefaultTier
	}
	if c.MaxUploadSize != nil {
		config.MaxUploadSize = *c.MaxUploadSize
	}
	if c.RenditionCacheSize != nil {
		config.RenditionCacheSize = *c.RenditionCacheSize
	}
	if c.MetricsEnabled != nil {
		config.MetricsEnabled = *c.MetricsEnabled
	}

	if c.ThumbnailPerks != nil {
		perks := make(map[int]string, len(c.ThumbnailPerks))
		for k, name := range c.ThumbnailPerks {
			height, err := strconv.Atoi(k)
			if err != nil || height <= 0 {
				return fmt.Errorf("invalid thumbnail height %q", k)
			}
			perks[height] = name
		}
		config.ThumbnailPerks = perks
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

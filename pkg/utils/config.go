package utils

import (
	"os"
	"strconv"
	"time"
)

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

func LoadAuthConfig() AuthConfig {
	secret := os.Getenv("NOVELHUB_JWT_SECRET")
	if secret == "" {
		// dev default (change for demo / production)
		secret = "dev-secret-change-me"
	}

	issuer := os.Getenv("NOVELHUB_JWT_ISSUER")
	if issuer == "" {
		issuer = "novelhub"
	}

	dur := 24 * time.Hour
	if ttl := os.Getenv("NOVELHUB_JWT_TTL_HOURS"); ttl != "" {
		if h, err := strconv.Atoi(ttl); err == nil && h > 0 {
			dur = time.Duration(h) * time.Hour
		}
	}

	return AuthConfig{
		JWTSecret:   secret,
		JWTIssuer:   issuer,
		JWTDuration: dur,
	}
}

// ContentConfig carries the settings of the ingestion pipeline: where
// extracted images, uploaded documents and media files land on disk, the
// default typography applied during normalization, and upload ceilings.
type ContentConfig struct {
	ImageDir       string // extracted inline images
	ImageURLPrefix string // public prefix rewritten into content markup
	DocumentDir    string // uploaded source documents, removed after processing
	MediaDir       string // directly uploaded images/videos

	FontFamily string
	FontSize   string

	MaxDocumentBytes int64
	MaxMediaBytes    int64
}

func LoadContentConfig() ContentConfig {
	return ContentConfig{
		ImageDir:         envOr("NOVELHUB_IMAGE_DIR", "data/content-images"),
		ImageURLPrefix:   envOr("NOVELHUB_IMAGE_URL_PREFIX", "/content-images"),
		DocumentDir:      envOr("NOVELHUB_DOCUMENT_DIR", "data/documents"),
		MediaDir:         envOr("NOVELHUB_MEDIA_DIR", "data/media"),
		FontFamily:       envOr("NOVELHUB_DEFAULT_FONT", "merriweather"),
		FontSize:         envOr("NOVELHUB_DEFAULT_SIZE", "large"),
		MaxDocumentBytes: envInt64("NOVELHUB_MAX_DOCUMENT_BYTES", 10<<20),
		MaxMediaBytes:    envInt64("NOVELHUB_MAX_MEDIA_BYTES", 50<<20),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

package version

// Value is stamped at release time via -ldflags "-X wu-obs-scraper/internal/version.Value=vX.Y.Z".
var Value = "v0.0.0-dev"

package service

import (
	"github.com/paracket/paracket/internal/config"
	"github.com/paracket/paracket/internal/models"
)

// CredentialResolver merges the credentials embedded in a scheduled post with
// the environment-backed fallbacks from configuration. Embedded values win,
// so records authored with their own secrets keep working, while records
// authored without any secrets rely on the deployment's credential set.
type CredentialResolver struct {
	platforms config.PlatformsConfig
}

func NewCredentialResolver(platforms config.PlatformsConfig) *CredentialResolver {
	return &CredentialResolver{platforms: platforms}
}

func (r *CredentialResolver) Resolve(platform string, embedded models.Credentials) models.Credentials {
	resolved := make(models.Credentials)
	for key, value := range r.fallback(platform) {
		if value != "" {
			resolved[key] = value
		}
	}
	for key, value := range embedded {
		if value != "" {
			resolved[key] = value
		}
	}
	return resolved
}

func (r *CredentialResolver) fallback(platform string) models.Credentials {
	switch platform {
	case "twitter":
		return models.Credentials{
			"api_key":       r.platforms.Twitter.APIKey,
			"api_secret":    r.platforms.Twitter.APISecret,
			"access_token":  r.platforms.Twitter.AccessToken,
			"access_secret": r.platforms.Twitter.AccessSecret,
		}
	case "mastodon":
		return models.Credentials{
			"instance":     r.platforms.Mastodon.Instance,
			"access_token": r.platforms.Mastodon.AccessToken,
		}
	case "reddit":
		return models.Credentials{
			"client_id":     r.platforms.Reddit.ClientID,
			"client_secret": r.platforms.Reddit.ClientSecret,
			"username":      r.platforms.Reddit.Username,
			"password":      r.platforms.Reddit.Password,
		}
	}
	return models.Credentials{}
}

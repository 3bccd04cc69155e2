package oauth

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Spec describes how to talk to one provider: its OAuth endpoints, the
// scopes it asks for by default, and where the profile fields live in the
// user-info JSON (gjson paths).
type Spec struct {
	Endpoint      oauth2.Endpoint
	DefaultScopes []string
	ProfileURL    string
	IDPath        string
	EmailPath     string
	NamePath      string
	NicknamePath  string
	AvatarPath    string
	// EmailsURL is queried when the profile carries no public email.
	EmailsURL  string
	EmailsPath string
}

func builtinSpecs() map[string]Spec {
	return map[string]Spec{
		"github": {
			Endpoint:      endpoints.GitHub,
			DefaultScopes: []string{"user:email"},
			ProfileURL:    "https://api.github.com/user",
			IDPath:        "id",
			EmailPath:     "email",
			NamePath:      "name",
			NicknamePath:  "login",
			AvatarPath:    "avatar_url",
			EmailsURL:     "https://api.github.com/user/emails",
			EmailsPath:    `#(primary==true).email`,
		},
		"google": {
			Endpoint:      endpoints.Google,
			DefaultScopes: []string{"openid", "profile", "email"},
			ProfileURL:    "https://openidconnect.googleapis.com/v1/userinfo",
			IDPath:        "sub",
			EmailPath:     "email",
			NamePath:      "name",
			AvatarPath:    "picture",
		},
		"facebook": {
			Endpoint:      endpoints.Facebook,
			DefaultScopes: []string{"email"},
			ProfileURL:    "https://graph.facebook.com/v19.0/me?fields=id,name,email,picture.type(large)",
			IDPath:        "id",
			EmailPath:     "email",
			NamePath:      "name",
			AvatarPath:    "picture.data.url",
		},
		"gitlab": {
			Endpoint:      endpoints.GitLab,
			DefaultScopes: []string{"read_user"},
			ProfileURL:    "https://gitlab.com/api/v4/user",
			IDPath:        "id",
			EmailPath:     "email",
			NamePath:      "name",
			NicknamePath:  "username",
			AvatarPath:    "avatar_url",
		},
	}
}

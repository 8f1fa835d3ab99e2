package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/onnwee/streambridge/commands"
	"github.com/onnwee/streambridge/settings"
)

// maskedTwitch returns the twitch section with secret material blanked.
// Presence flags let the frontend show whether tokens exist without ever
// echoing them.
func maskedTwitch(t settings.TwitchSettings) map[string]any {
	return map[string]any{
		"username":        t.Username,
		"channel":         t.Channel,
		"clientId":        t.ClientID,
		"hasClientSecret": t.ClientSecret != "",
		"hasOAuthToken":   t.OAuthToken != "",
		"hasAccessToken":  t.AccessToken != "",
		"hasRefreshToken": t.RefreshToken != "",
		"tokenExpiresAt":  t.TokenExpiresAt,
	}
}

// HandleConfig returns the settings record with secrets masked.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s := h.store.Get()
	mc := s.Minecraft
	mc.RCONPassword = ""
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"twitch":          maskedTwitch(s.Twitch),
		"minecraft":       mc,
		"commandMappings": s.CommandMappings,
	})
}

// HandleConfigTwitch merges the posted fields into the twitch section. The
// save triggers the settings listeners, which hand the new credential
// snapshot to the lifecycle manager.
func (h *Handlers) HandleConfigTwitch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	snapshot, err := h.store.Update(func(s *settings.Settings) {
		applyTwitchField(&s.Twitch, body)
	})
	if err != nil {
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(maskedTwitch(snapshot.Twitch))
}

func applyTwitchField(t *settings.TwitchSettings, body map[string]string) {
	for k, v := range body {
		v = strings.TrimSpace(v)
		switch k {
		case "username":
			t.Username = v
		case "channel":
			t.Channel = v
		case "clientId":
			t.ClientID = v
		case "clientSecret":
			t.ClientSecret = v
		case "oauthToken":
			t.OAuthToken = v
		case "accessToken":
			t.AccessToken = v
		case "refreshToken":
			t.RefreshToken = v
		case "tokenExpiresAt":
			t.TokenExpiresAt = v
		}
	}
}

// HandleConfigMinecraft merges the posted fields into the minecraft section.
func (h *Handlers) HandleConfigMinecraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Host           *string `json:"host"`
		RCONPort       *int    `json:"rconPort"`
		RCONPassword   *string `json:"rconPassword"`
		ScriptBasePath *string `json:"scriptBasePath"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	snapshot, err := h.store.Update(func(s *settings.Settings) {
		if body.Host != nil {
			s.Minecraft.Host = strings.TrimSpace(*body.Host)
		}
		if body.RCONPort != nil {
			s.Minecraft.RCONPort = *body.RCONPort
		}
		if body.RCONPassword != nil {
			s.Minecraft.RCONPassword = *body.RCONPassword
		}
		if body.ScriptBasePath != nil {
			s.Minecraft.ScriptBasePath = strings.TrimSpace(*body.ScriptBasePath)
		}
	})
	if err != nil {
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	mc := snapshot.Minecraft
	mc.RCONPassword = ""
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(mc)
}

// HandleConfigCommands upserts one command mapping.
func (h *Handlers) HandleConfigCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body commands.Mapping
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	body.Command = strings.TrimSpace(body.Command)
	body.ScriptName = strings.TrimSpace(body.ScriptName)
	if body.Command == "" || body.ScriptName == "" {
		http.Error(w, "command and scriptName are required", http.StatusBadRequest)
		return
	}
	snapshot, err := h.store.Update(func(s *settings.Settings) {
		for i := range s.CommandMappings {
			if s.CommandMappings[i].Command == body.Command {
				s.CommandMappings[i] = body
				return
			}
		}
		s.CommandMappings = append(s.CommandMappings, body)
	})
	if err != nil {
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot.CommandMappings)
}

// HandleConfigCommandDelete removes one command mapping by its path suffix.
func (h *Handlers) HandleConfigCommandDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/api/config/commands/")
	command, err := url.PathUnescape(raw)
	if err != nil || command == "" {
		http.Error(w, "command is required", http.StatusBadRequest)
		return
	}
	snapshot, err := h.store.Update(func(s *settings.Settings) {
		kept := s.CommandMappings[:0]
		for _, m := range s.CommandMappings {
			if m.Command != command {
				kept = append(kept, m)
			}
		}
		s.CommandMappings = kept
	})
	if err != nil {
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot.CommandMappings)
}

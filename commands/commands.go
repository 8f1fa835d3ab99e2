// Package commands maps incoming chat commands to game-server trigger
// payloads. It only constructs payloads; execution belongs to a downstream
// collaborator behind the TriggerSink interface.
package commands

import (
	"strings"
	"time"
)

// Mapping associates one chat command with a script on the game server.
type Mapping struct {
	Command     string `json:"command"`
	ScriptName  string `json:"scriptName"`
	Description string `json:"description"`
}

// DefaultRCONPort is the conventional Minecraft RCON port, assumed until the
// operator configures the target.
const DefaultRCONPort = 25575

// GameTarget carries the connection parameters of the external execution
// target, as configured in the settings record.
type GameTarget struct {
	Host           string `json:"host"`
	RCONPort       int    `json:"rconPort"`
	RCONPassword   string `json:"rconPassword"`
	ScriptBasePath string `json:"scriptBasePath"`
}

// Trigger is the payload handed to the downstream executor when a chat
// command matches a mapping.
type Trigger struct {
	Host            string    `json:"host"`
	RCONPort        int       `json:"rconPort"`
	RCONPassword    string    `json:"rconPassword"`
	ScriptBasePath  string    `json:"scriptBasePath"`
	ScriptToTrigger string    `json:"scriptToTrigger"`
	Command         string    `json:"command"`
	Description     string    `json:"description"`
	TriggerType     string    `json:"triggerType"`
	Timestamp       time.Time `json:"timestamp"`
}

// TriggerSink receives constructed trigger payloads. Implementations live
// outside this core; the default sink in main only logs.
type TriggerSink interface {
	Dispatch(Trigger)
}

// Match performs a case-insensitive lookup of the message against the mapping
// table and returns at most one match.
func Match(mappings []Mapping, message string) (Mapping, bool) {
	needle := strings.ToLower(strings.TrimSpace(message))
	for _, m := range mappings {
		if strings.ToLower(m.Command) == needle {
			return m, true
		}
	}
	return Mapping{}, false
}

// BuildTrigger constructs the trigger payload for a matched mapping.
func BuildTrigger(target GameTarget, m Mapping) Trigger {
	return Trigger{
		Host:            target.Host,
		RCONPort:        target.RCONPort,
		RCONPassword:    target.RCONPassword,
		ScriptBasePath:  target.ScriptBasePath,
		ScriptToTrigger: m.ScriptName,
		Command:         m.Command,
		Description:     m.Description,
		TriggerType:     "script",
		Timestamp:       time.Now().UTC(),
	}
}

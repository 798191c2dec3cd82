package permissions

// Trust levels. Higher levels hold every capability of the levels below.
const (
	LevelMember    = 0
	LevelSupport   = 1
	LevelModerator = 2
	LevelGS        = 3
	LevelAdmin     = 4
	LevelOwner     = 5
)

// levelNames maps a level to its display name.
var levelNames = map[int]string{
	LevelMember:    "Member",
	LevelSupport:   "Support",
	LevelModerator: "Moderator",
	LevelGS:        "GS (Management)",
	LevelAdmin:     "Administrator",
	LevelOwner:     "Bot Owner",
}

// LevelName returns the display name for a level.
func LevelName(level int) string {
	if name, ok := levelNames[level]; ok {
		return name
	}
	return "Unknown"
}

// Tier is a grantable membership tier.
type Tier string

const (
	TierOwner     Tier = "owner"
	TierAdmin     Tier = "admin"
	TierGS        Tier = "gs"
	TierModerator Tier = "moderator"
	TierSupport   Tier = "support"
)

// Level returns the trust level a tier confers.
func (t Tier) Level() int {
	switch t {
	case TierOwner:
		return LevelOwner
	case TierAdmin:
		return LevelAdmin
	case TierGS:
		return LevelGS
	case TierModerator:
		return LevelModerator
	case TierSupport:
		return LevelSupport
	default:
		return LevelMember
	}
}

// grantThreshold is the minimum level the caller must hold to grant or revoke
// a tier. Owner, admin and gs changes are reserved to bot owners; moderator
// and support changes to administrators.
func (t Tier) grantThreshold() int {
	switch t {
	case TierOwner, TierAdmin, TierGS:
		return LevelOwner
	case TierModerator, TierSupport:
		return LevelAdmin
	default:
		return LevelOwner
	}
}

// commandLevels is the required trust level per command.
var commandLevels = map[string]int{
	// Support: information only.
	"warn":       LevelSupport,
	"warns":      LevelSupport,
	"memberinfo": LevelSupport,

	// Moderator: basic moderation.
	"kick":     LevelModerator,
	"mute":     LevelModerator,
	"unmute":   LevelModerator,
	"timeout":  LevelModerator,
	"clear":    LevelModerator,
	"lock":     LevelModerator,
	"unlock":   LevelModerator,
	"slowmode": LevelModerator,

	// GS: full management except admin commands.
	"ban":        LevelGS,
	"unban":      LevelGS,
	"addrole":    LevelGS,
	"removerole": LevelGS,
	"nick":       LevelGS,
	"clearwarns": LevelGS,
	"removewarn": LevelGS,

	// Administrator: permission management.
	"addmod":        LevelAdmin,
	"removemod":     LevelAdmin,
	"addsupport":    LevelAdmin,
	"removesupport": LevelAdmin,
	"setrole":       LevelAdmin,
	"delrole":       LevelAdmin,

	// Bot owner: full control.
	"addgs":       LevelOwner,
	"removegs":    LevelOwner,
	"addadmin":    LevelOwner,
	"removeadmin": LevelOwner,
	"addowner":    LevelOwner,
	"removeowner": LevelOwner,
}

// RequiredLevel returns the level needed to run a command. Unknown commands
// require no level.
func RequiredLevel(command string) int {
	return commandLevels[command]
}

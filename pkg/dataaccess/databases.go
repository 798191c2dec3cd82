package dataaccess

// DAL names used in metric labels and logs.
const (
	permissionsDalName = "permissions_dal"
	guildDalName       = "guild_dal"
	warnDalName        = "warn_dal"
)

const mongoDatabase = "warden"

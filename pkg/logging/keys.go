package logging

const (
	// KeyAppName is the log key for the application name.
	KeyAppName = "app"

	// KeyError is the log key for an error.
	KeyError = "err"

	// KeyDal is the log key for the data access layer name.
	KeyDal = "dal"

	// KeyGuild is the log key for a guild ID.
	KeyGuild = "guild_id"

	// KeyUser is the log key for a user ID.
	KeyUser = "user_id"

	// KeyChannel is the log key for a channel ID.
	KeyChannel = "channel_id"

	// KeyCommand is the log key for a command name.
	KeyCommand = "command"
)

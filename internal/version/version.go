package version

// AppName identifies the bot in logs and help output.
const AppName = "server-warden"

// Version is overridden at build time via -ldflags.
var Version = "dev"

package common

// PackageName is used as the metrics namespace and default log service tag.
const PackageName = "timelock_vault"

// Version is overridden at build time with -ldflags "-X".
var Version = "dev"

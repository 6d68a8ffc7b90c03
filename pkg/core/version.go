package core

// Version is the sqlforge release version, exposed to templates as
// sqlforge_version.
const Version = "0.2.0"

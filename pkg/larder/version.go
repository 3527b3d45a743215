package larder

// Version is the larder release.
const Version = "0.1.0"

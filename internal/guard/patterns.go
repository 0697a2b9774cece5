package guard

// DefaultBlockedPatterns returns the ordered glob list applied when no
// policy file overrides it. Order matters: the first match is reported.
func DefaultBlockedPatterns() []string {
	return []string{
		// Secrets and credentials
		"**/.env*",
		"**/*.pem",
		"**/*.key",
		"**/id_rsa*",
		"**/id_ed25519*",
		"**/.aws/**",
		"**/.ssh/**",
		"**/credentials*",
		"**/secrets*",

		// VCS metadata: both the directory itself and anything inside it
		"**/.git",
		"**/.git/**",
		"**/.svn",
		"**/.svn/**",
		"**/.hg",
		"**/.hg/**",

		// Build output and dependency trees
		"**/node_modules",
		"**/node_modules/**",
		"**/dist/**",
		"**/build/**",
		"**/target/**",
		"**/__pycache__",
		"**/__pycache__/**",

		// OS housekeeping
		"**/.DS_Store",
		"**/Thumbs.db",
		"**/desktop.ini",
	}
}

// SkippedIndexDirs lists directory names never descended into when indexing
// an extracted artifact tree. Extracted content is less trusted than the
// primary project root, so the skip list is not configurable.
func SkippedIndexDirs() map[string]bool {
	return map[string]bool{
		".git":         true,
		".svn":         true,
		".hg":          true,
		"node_modules": true,
		"__pycache__":  true,
		".cache":       true,
	}
}

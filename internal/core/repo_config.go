package core

// RepoConfig represents the structure of the .patch-warden.yml file that a
// repository may carry to tune the engine's behavior.
type RepoConfig struct {
	// Formatters to run in recompute mode. Empty means all registered
	// formatters. Example: ["clang-format", "darker"]
	Formatters []string `yaml:"formatters"`

	// High-performance exclusion of entire directories by name.
	// Example: ["third_party", "vendor"]
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// Exclusion of files based on their extension.
	// The leading dot is optional. Example: [".pb.h", "inc"]
	ExcludeExts []string `yaml:"exclude_exts"`

	// Actors allowed to trigger a patch application in addition to the
	// pull request author.
	AllowedActors []string `yaml:"allowed_actors"`

	// VerifyArtifact makes the pipeline re-run the formatter before applying
	// a comment-stored diff and refuse to proceed when the two disagree.
	// Requires the formatter binaries to be installed on the server.
	VerifyArtifact bool `yaml:"verify_artifact"`
}

// DefaultRepoConfig returns a config with default values.
func DefaultRepoConfig() *RepoConfig {
	return &RepoConfig{
		Formatters:    []string{},
		ExcludeDirs:   []string{},
		ExcludeExts:   []string{},
		AllowedActors: []string{},
	}
}

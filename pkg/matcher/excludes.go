package matcher

// DefaultExcludes are path fragments that never hold documents worth
// extracting. Matching is case-insensitive and literal.
var DefaultExcludes = []string{
	// OS / System
	`Windows`,
	`Program Files`,
	`Program Files (x86)`,
	`ProgramData`,
	`AppData`,
	`$Recycle.Bin`,
	`System Volume Information`,
	`.DS_Store`,
	`Thumbs.db`,
	`pagefile.sys`,
	`swapfile.sys`,
	`hiberfil.sys`,

	// Dev / SCM
	`.git`,
	`.svn`,
	`node_modules`,
	`vendor`,
	`__pycache__`,
	`.idea`,
	`.vscode`,
	`venv`,

	// Office lock and temp files
	`~$`,
	`.~lock.`,

	// User profile noise
	`Cookies`,
	`NetHood`,
	`PrintHood`,
	`Recent`,
	`SendTo`,
	`Start Menu`,
}

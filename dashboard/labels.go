package dashboard

var projectLabels = map[string]string{
	"vi-home-one":         "ViDistrictOne",
	"bsh-home-connect":    "BSH Remote Assist",
	"adtech-intelligence": "AdTech Intelligence",
	"mol-asm-cockpit":     "ASM Cockpit",
}

// ProjectLabel returns the display name for a project slug, or the slug.
func ProjectLabel(slug string) string {
	if label, ok := projectLabels[slug]; ok {
		return label
	}
	return slug
}

package domain

// DocTypeRule maps filename or query keywords to a document type. Rules are
// ordered; the first matching rule wins.
type DocTypeRule struct {
	Type     DocumentType `yaml:"type"`
	Keywords []string     `yaml:"keywords"`
}

// ExtensionRule is the fallback applied when no keyword rule matched.
type ExtensionRule struct {
	Extension string       `yaml:"extension"`
	Type      DocumentType `yaml:"type"`
}

// RegionRule maps keywords to one geographic region tag. Ordered, first
// match wins when only one region is wanted (query analysis); document
// scanning collects every matching region.
type RegionRule struct {
	Region   string   `yaml:"region"`
	Keywords []string `yaml:"keywords"`
}

// RuleTables carries the versioned keyword tables that drive document-type,
// year and region inference. Tests substitute minimal tables.
type RuleTables struct {
	Version string `yaml:"version"`

	// FilenameDocTypes classifies a document from its filename.
	FilenameDocTypes []DocTypeRule `yaml:"filename_doc_types"`
	// Extensions is consulted when no filename keyword matched.
	Extensions []ExtensionRule `yaml:"extensions"`
	// QueryDocTypes detects a document-type constraint inside a query.
	QueryDocTypes []DocTypeRule `yaml:"query_doc_types"`
	Regions       []RegionRule  `yaml:"regions"`
}

// DefaultRuleTables returns the built-in corpus vocabulary.
func DefaultRuleTables() RuleTables {
	return RuleTables{
		Version: "2026-02",
		FilenameDocTypes: []DocTypeRule{
			{Type: TypeCaseStudy, Keywords: []string{
				"case study", "case-study", "case_study", "case studies",
				"success story", "success stories", " ss ", "ss_",
			}},
			{Type: TypeWhitepaper, Keywords: []string{"whitepaper", "white paper", "white-paper"}},
			{Type: TypeProposal, Keywords: []string{"proposal"}},
			{Type: TypePitchDeck, Keywords: []string{"pitch", "deck"}},
			{Type: TypeServicePresentation, Keywords: []string{
				"offering", "services", "overview", "corp overview",
				"engineering stack", "delivery model", "execution", "governance",
			}},
		},
		Extensions: []ExtensionRule{
			// docx files in this corpus are almost always whitepapers.
			{Extension: ".docx", Type: TypeWhitepaper},
		},
		QueryDocTypes: []DocTypeRule{
			{Type: TypeCaseStudy, Keywords: []string{
				"case study", "case studies", "case-study", "success story", "success stories",
			}},
			{Type: TypeWhitepaper, Keywords: []string{"whitepaper", "white paper", "whitepapers", "white papers"}},
			{Type: TypeProposal, Keywords: []string{"proposal", "proposals"}},
			{Type: TypePitchDeck, Keywords: []string{"pitch", "deck", "pitch deck"}},
			{Type: TypeServicePresentation, Keywords: []string{"service presentation", "offerings", "service overview"}},
		},
		Regions: []RegionRule{
			{Region: "south india", Keywords: []string{
				"tamil nadu", "chennai", "karnataka", "bangalore", "bengaluru",
				"kerala", "kochi", "thiruvananthapuram", "andhra pradesh",
				"hyderabad", "telangana", "south india", "coimbatore", "mysore",
				"madurai", "visakhapatnam", "vijayawada",
			}},
			{Region: "north india", Keywords: []string{
				"delhi", "ncr", "uttar pradesh", "haryana", "gurgaon", "gurugram",
				"noida", "punjab", "rajasthan", "north india", "lucknow", "jaipur",
				"chandigarh",
			}},
			{Region: "west india", Keywords: []string{
				"mumbai", "maharashtra", "pune", "gujarat", "ahmedabad",
				"surat", "goa", "west india",
			}},
			{Region: "east india", Keywords: []string{
				"kolkata", "west bengal", "odisha", "bhubaneswar",
				"bihar", "jharkhand", "east india",
			}},
		},
	}
}

package strict

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// LicenseFiles are checked in order.
var LicenseFiles = []string{"LICENSE", "LICENSE.md", "LICENSE.txt", "COPYING"}

var spdxRe = regexp.MustCompile(`SPDX-License-Identifier:\s*([A-Za-z0-9.+\-]+)`)

// licenseSignatures are tried in order; more specific texts come first.
var licenseSignatures = []struct {
	id string
	re *regexp.Regexp
}{
	{"AGPL-3.0", regexp.MustCompile(`(?i)GNU AFFERO GENERAL PUBLIC LICENSE`)},
	{"LGPL-3.0", regexp.MustCompile(`(?i)GNU LESSER GENERAL PUBLIC LICENSE`)},
	{"GPL-3.0", regexp.MustCompile(`(?i)GNU GENERAL PUBLIC LICENSE\s+Version 3`)},
	{"GPL-2.0", regexp.MustCompile(`(?i)GNU GENERAL PUBLIC LICENSE\s+Version 2`)},
	{"MPL-2.0", regexp.MustCompile(`(?i)Mozilla Public License,?\s+(?:Version|v\.?)\s*2\.0`)},
	{"Apache-2.0", regexp.MustCompile(`(?i)Apache License,?\s+Version 2\.0`)},
	{"MIT", regexp.MustCompile(`(?i)\bMIT License\b|Permission is hereby granted, free of charge`)},
	{"ISC", regexp.MustCompile(`(?i)\bISC License\b|Permission to use, copy, modify, and/or distribute`)},
	{"BSD-3-Clause", regexp.MustCompile(`(?i)Redistribution and use in source and binary forms[\s\S]*Neither the name`)},
	{"BSD-2-Clause", regexp.MustCompile(`(?i)Redistribution and use in source and binary forms`)},
}

// DetectLicense returns the license file at root and its SPDX id. The id is
// empty when the text is not recognized; both are empty without a file.
func DetectLicense(root string) (file, id string) {
	for _, name := range LicenseFiles {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			continue
		}
		return name, identifyLicense(string(data))
	}
	return "", ""
}

func identifyLicense(text string) string {
	if m := spdxRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	for _, sig := range licenseSignatures {
		if sig.re.MatchString(text) {
			return sig.id
		}
	}
	return ""
}

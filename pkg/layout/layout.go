// Package layout resolves where files for an asset class and frequency live
// on the remote server.
package layout

import (
	"path"
	"strings"

	"github.com/sidkik/rmasync/pkg/errors"
)

// AssetClass is the top-level category of the analysed subjects.
type AssetClass string

// Frequency combines the analytic window length with its update interval.
type Frequency string

// Bucket is the time granularity the remote files are chunked by.
type Bucket string

// The known asset classes.
const (
	Company         AssetClass = "CMPNY"
	CompanyAmericas AssetClass = "CMPNY_AMER"
	CompanyAPAC     AssetClass = "CMPNY_APAC"
	CompanyEMEA     AssetClass = "CMPNY_EMEA"
	CompanyESG      AssetClass = "CMPNY_ESG"
	CompanyGroup    AssetClass = "CMPNY_GRP"
	Agriculture     AssetClass = "COM_AGR"
	Energy          AssetClass = "COM_ENM"
	Country         AssetClass = "COU"
	CountryESG      AssetClass = "COU_ESG"
	CountryMarket   AssetClass = "COU_MKT"
	Crypto          AssetClass = "CRYPTO"
	Currency        AssetClass = "CUR"
)

// The known frequencies.
const (
	// YearlyDaily is a 365 day window updated daily. Its files live under
	// the asset class with a "_COR" suffix.
	YearlyDaily  Frequency = "W365_UDAI"
	DailyDaily   Frequency = "WDAI_UDAI"
	DailyHourly  Frequency = "WDAI_UHOU"
	MinuteMinute Frequency = "W01M_U01M"
)

// The known buckets.
const (
	Monthly  Bucket = "monthly"
	Daily    Bucket = "daily"
	Hourly   Bucket = "hourly"
	Minutely Bucket = "minutely"
)

var (
	// AssetClasses lists every asset class.
	AssetClasses = []AssetClass{Company, CompanyAmericas, CompanyAPAC, CompanyEMEA,
		CompanyESG, CompanyGroup, Agriculture, Energy, Country, CountryESG,
		CountryMarket, Crypto, Currency}

	// Frequencies lists every frequency.
	Frequencies = []Frequency{YearlyDaily, DailyDaily, DailyHourly, MinuteMinute}

	// Buckets lists every bucket, broadest first. The fetch planner relies on
	// this order to skip finer files that coarser ones already covered.
	Buckets = []Bucket{Monthly, Daily, Hourly, Minutely}
)

// ParseAssetClass returns the asset class with the given name.
func ParseAssetClass(name string) (AssetClass, error) {
	for _, ac := range AssetClasses {
		if string(ac) == name {
			return ac, nil
		}
	}
	return "", errors.ParseError{Input: name, Expected: "asset class: " + join(AssetClasses)}
}

// ParseFrequency returns the frequency with the given name.
func ParseFrequency(name string) (Frequency, error) {
	for _, f := range Frequencies {
		if string(f) == name {
			return f, nil
		}
	}
	return "", errors.ParseError{Input: name, Expected: "frequency: " + join(Frequencies)}
}

// ParseBucket returns the bucket with the given name.
func ParseBucket(name string) (Bucket, error) {
	for _, b := range Buckets {
		if string(b) == name {
			return b, nil
		}
	}
	return "", errors.ParseError{Input: name, Expected: "bucket: " + join(Buckets)}
}

func join[T ~string](values []T) string {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = string(v)
	}
	return "{" + strings.Join(names, ",") + "}"
}

const (
	// DefaultTemplate is the layout of the production server.
	DefaultTemplate = "{prefix}/{asset_class}/{frequency}/{bucket}"

	// DefaultPrefix is the root of the production layout.
	DefaultPrefix = "/mrn-mi-w/PRO/MI4"

	// FrequencyTemplate is used when the root lists frequencies.
	FrequencyTemplate = "{frequency}/{bucket}"

	// AssetClassTemplate is used when the root lists asset classes.
	AssetClassTemplate = "{asset_class}/{frequency}/{bucket}"

	// BucketTemplate is used when the root lists buckets.
	BucketTemplate = "{bucket}"

	trialDir = "TRIAL"
)

// TrialPrefix returns the prefix used by trial accounts.
func TrialPrefix(prefix string, trial bool) string {
	if !trial {
		return prefix
	}
	return path.Join(prefix, trialDir)
}

// BuildDirectory substitutes the request into template.
func BuildDirectory(assetClass AssetClass, frequency Frequency, bucket Bucket,
	template, prefix string) string {

	assetClassDir := string(assetClass)
	if frequency == YearlyDaily {
		assetClassDir += "_COR"
	}

	dir := strings.NewReplacer(
		"{prefix}", prefix,
		"{asset_class}", assetClassDir,
		"{frequency}", string(frequency),
		"{bucket}", string(bucket),
	).Replace(template)
	return path.Clean(dir)
}

// CandidateDirectories returns the directory for each requested bucket,
// broadest bucket first. If no buckets are given, all of them are used.
func CandidateDirectories(assetClass AssetClass, frequency Frequency, buckets []Bucket,
	template, prefix string) []string {

	var dirs []string
	for _, bucket := range canonicalOrder(buckets) {
		dirs = append(dirs, BuildDirectory(assetClass, frequency, bucket, template, prefix))
	}
	return dirs
}

// canonicalOrder returns the requested buckets in the order of Buckets,
// without duplicates.
func canonicalOrder(requested []Bucket) []Bucket {
	if len(requested) == 0 {
		return Buckets
	}

	var ordered []Bucket
	for _, bucket := range Buckets {
		for _, r := range requested {
			if r == bucket {
				ordered = append(ordered, bucket)
				break
			}
		}
	}
	return ordered
}

// DetectTemplate guesses the layout from the names in the remote root
// directory. Only the first entry is inspected.
func DetectTemplate(rootListing []string) (string, error) {
	if len(rootListing) == 0 {
		return "", errors.TemplateError{Reason: "empty root folder"}
	}

	first := rootListing[0]
	if _, err := ParseFrequency(first); err == nil {
		return FrequencyTemplate, nil
	}
	if _, err := ParseAssetClass(first); err == nil {
		return AssetClassTemplate, nil
	}
	if _, err := ParseBucket(first); err == nil {
		return BucketTemplate, nil
	}
	return "", errors.TemplateError{Reason: "unrecognized root entry " + first}
}

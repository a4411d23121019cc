package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"

	"locex/pkg/commons"
)

// Structured-data property and unit ids used on Commons MediaInfo entities.
const (
	propPointOfView = "P1259"
	propHeading     = "P7787"
	propElevation   = "P2044"
	propDepicts     = "P180"

	unitDegree = "Q28390"
	unitMetre  = "Q11573"
)

var allowedLicenses = map[string]bool{
	"Cc-by-sa-4.0": true,
	"Cc-by-4.0":    true,
	"Cc-zero":      true,
}

// UploadInput describes one Commons image upload. Filename, license, and
// the file reader are required; coordinates are required unless the image
// carries its own EXIF position (CoordinateFromEXIF).
type UploadInput struct {
	Filename string
	File     io.Reader

	Caption             string
	CaptionLanguage     string
	Description         string
	DescriptionLanguage string
	Author              string
	SourceURL           string
	DateCreated         string
	License             string

	Categories []string
	Depicts    []string

	CoordinateFromEXIF bool
	Latitude           float64
	Longitude          float64
	Heading            *float64
	ElevationMeters    *float64

	// WikidataItem links the file description page back to the item.
	WikidataItem string
}

func (in *UploadInput) validate() error {
	name := strings.TrimSpace(in.Filename)
	name = name[strings.LastIndexByte(strings.ReplaceAll(name, "\\", "/"), '/')+1:]
	if name == "" {
		return fmt.Errorf("%w: a target filename is required", ErrWrite)
	}
	if strings.ContainsAny(name, ":\n\r") {
		return fmt.Errorf("%w: invalid target filename %q", ErrWrite, name)
	}
	in.Filename = name

	if in.File == nil {
		return fmt.Errorf("%w: a file is required", ErrWrite)
	}
	if in.License == "" {
		in.License = "Cc-by-sa-4.0"
	}
	if !allowedLicenses[in.License] {
		return fmt.Errorf("%w: unsupported license %q", ErrWrite, in.License)
	}
	if !in.CoordinateFromEXIF {
		if in.Latitude < -90 || in.Latitude > 90 || in.Longitude < -180 || in.Longitude > 180 {
			return fmt.Errorf("%w: coordinates out of range", ErrWrite)
		}
	}
	if in.Heading != nil {
		normalized := math.Mod(*in.Heading, 360)
		if normalized < 0 {
			normalized += 360
		}
		in.Heading = &normalized
	}
	return nil
}

// UploadResult reports an upload. Claim and caption failures after the file
// exists land in Warnings rather than failing the whole operation.
type UploadResult struct {
	Filename       string   `json:"filename"`
	FileURL        string   `json:"file_url"`
	DescriptionURL string   `json:"description_url"`
	MediaID        string   `json:"media_id,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// CommonsUploader uploads images to Commons and decorates them with
// structured data. The session must be bound to the Commons api.php.
type CommonsUploader struct {
	session *Session
	csrf    string
}

// NewCommonsUploader fetches the edit token up front like NewWriter does.
func NewCommonsUploader(ctx context.Context, session *Session) (*CommonsUploader, error) {
	csrf, err := session.CSRFToken(ctx)
	if err != nil {
		return nil, err
	}
	return &CommonsUploader{session: session, csrf: csrf}, nil
}

// buildWikitext renders the file description page. The same input always
// yields identical wikitext.
func buildWikitext(in UploadInput) string {
	var b strings.Builder
	b.WriteString("=={{int:filedesc}}==\n{{Information\n")

	description := strings.TrimSpace(in.Description)
	if description != "" {
		lang := LanguageCode(in.DescriptionLanguage, "en")
		fmt.Fprintf(&b, "|description={{%s|1=%s}}\n", lang, description)
	} else {
		b.WriteString("|description=\n")
	}
	fmt.Fprintf(&b, "|date=%s\n", strings.TrimSpace(in.DateCreated))
	source := strings.TrimSpace(in.SourceURL)
	if source == "" {
		source = "{{own}}"
	}
	fmt.Fprintf(&b, "|source=%s\n", source)
	fmt.Fprintf(&b, "|author=%s\n", strings.TrimSpace(in.Author))
	b.WriteString("}}\n")

	if !in.CoordinateFromEXIF {
		lat := strconv.FormatFloat(in.Latitude, 'f', -1, 64)
		lon := strconv.FormatFloat(in.Longitude, 'f', -1, 64)
		if in.Heading != nil {
			fmt.Fprintf(&b, "{{Location|%s|%s|heading:%s}}\n", lat, lon, strconv.FormatFloat(*in.Heading, 'f', -1, 64))
		} else {
			fmt.Fprintf(&b, "{{Location|%s|%s}}\n", lat, lon)
		}
	}
	if qid := ExtractQID(in.WikidataItem); qid != "" {
		fmt.Fprintf(&b, "{{On Wikidata|%s}}\n", qid)
	}

	fmt.Fprintf(&b, "\n=={{int:license-header}}==\n{{%s}}\n", in.License)

	for _, category := range in.Categories {
		if name := commons.PetscanCategoryValue(category); name != "" {
			fmt.Fprintf(&b, "\n[[Category:%s]]", name)
		}
	}
	b.WriteString("\n")
	return b.String()
}

// Upload sends the file, resolves its MediaInfo id, then attaches the
// caption, the point-of-view coordinate with heading/elevation qualifiers,
// and one depicts claim per subject. The file upload itself is the only
// fatal step; every later failure is collected as a warning.
func (u *CommonsUploader) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	payload, err := u.session.PostMultipart(ctx, url.Values{
		"action":         {"upload"},
		"filename":       {in.Filename},
		"text":           {buildWikitext(in)},
		"comment":        {"Uploaded location image"},
		"ignorewarnings": {"1"},
		"token":          {u.csrf},
	}, "file", in.Filename, in.File)
	if err != nil {
		return nil, err
	}

	uploadPayload, _ := payload["upload"].(map[string]any)
	if result := stringValue(uploadPayload["result"]); result != "Success" {
		return nil, fmt.Errorf("%w: upload result %q", ErrWrite, result)
	}
	finalName := stringValue(uploadPayload["filename"])
	if finalName == "" {
		finalName = in.Filename
	}

	result := &UploadResult{
		Filename:       finalName,
		FileURL:        commons.FileURL(finalName),
		DescriptionURL: "https://commons.wikimedia.org/wiki/File:" + strings.ReplaceAll(finalName, " ", "_"),
	}

	mediaID, err := u.resolveMediaID(ctx, finalName)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("media id: %v", err))
		return result, nil
	}
	result.MediaID = mediaID

	if caption := strings.TrimSpace(in.Caption); caption != "" {
		if err := u.setCaption(ctx, mediaID, caption, LanguageCode(in.CaptionLanguage, "en")); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("caption: %v", err))
		}
	}

	if !in.CoordinateFromEXIF {
		if err := u.setPointOfView(ctx, mediaID, in); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("point of view: %v", err))
		}
	}

	for _, subject := range in.Depicts {
		qid := ExtractQID(subject)
		if qid == "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("depicts: invalid subject %q", subject))
			continue
		}
		if err := u.createMediaClaim(ctx, mediaID, propDepicts, mustEntityValue(qid)); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("depicts %s: %v", qid, err))
		}
	}

	return result, nil
}

func (u *CommonsUploader) resolveMediaID(ctx context.Context, filename string) (string, error) {
	payload, err := u.session.Get(ctx, url.Values{
		"action": {"query"},
		"titles": {"File:" + filename},
		"prop":   {"info"},
	})
	if err != nil {
		return "", err
	}
	query, _ := payload["query"].(map[string]any)
	pages, _ := query["pages"].(map[string]any)
	for _, entry := range pages {
		page, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if pageID, ok := page["pageid"].(float64); ok && pageID > 0 {
			return "M" + strconv.Itoa(int(pageID)), nil
		}
	}
	return "", fmt.Errorf("%w: no page id for %q", ErrWrite, filename)
}

func (u *CommonsUploader) setCaption(ctx context.Context, mediaID, caption, language string) error {
	_, err := u.session.Post(ctx, url.Values{
		"action":   {"wbsetlabel"},
		"id":       {mediaID},
		"language": {language},
		"value":    {caption},
		"token":    {u.csrf},
	})
	return err
}

func (u *CommonsUploader) setPointOfView(ctx context.Context, mediaID string, in UploadInput) error {
	coordinate, err := CoordinateValue(in.Latitude, in.Longitude)
	if err != nil {
		return err
	}
	claimID, err := u.createMediaClaimID(ctx, mediaID, propPointOfView, coordinate)
	if err != nil {
		return err
	}
	if in.Heading != nil {
		if err := u.setMediaQualifier(ctx, claimID, propHeading, QuantityValue(*in.Heading, unitDegree)); err != nil {
			return err
		}
	}
	if in.ElevationMeters != nil {
		if err := u.setMediaQualifier(ctx, claimID, propElevation, QuantityValue(*in.ElevationMeters, unitMetre)); err != nil {
			return err
		}
	}
	return nil
}

func (u *CommonsUploader) createMediaClaim(ctx context.Context, mediaID, property string, datavalue any) error {
	_, err := u.createMediaClaimID(ctx, mediaID, property, datavalue)
	return err
}

func (u *CommonsUploader) createMediaClaimID(ctx context.Context, mediaID, property string, datavalue any) (string, error) {
	encoded, err := json.Marshal(datavalue)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}
	payload, err := u.session.Post(ctx, url.Values{
		"action":   {"wbcreateclaim"},
		"entity":   {mediaID},
		"property": {property},
		"snaktype": {"value"},
		"value":    {string(encoded)},
		"token":    {u.csrf},
	})
	if err != nil {
		return "", err
	}
	claimID := strings.TrimSpace(stringPath(payload, "claim", "id"))
	if claimID == "" {
		return "", fmt.Errorf("%w: API did not return claim id for %s", ErrWrite, property)
	}
	return claimID, nil
}

func (u *CommonsUploader) setMediaQualifier(ctx context.Context, claimID, property string, datavalue any) error {
	encoded, err := json.Marshal(datavalue)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	_, err = u.session.Post(ctx, url.Values{
		"action":   {"wbsetqualifier"},
		"claim":    {claimID},
		"property": {property},
		"snaktype": {"value"},
		"value":    {string(encoded)},
		"token":    {u.csrf},
	})
	return err
}

// mustEntityValue is for QIDs already validated with ExtractQID.
func mustEntityValue(qid string) map[string]any {
	v, err := EntityValue(qid)
	if err != nil {
		panic(err)
	}
	return v
}

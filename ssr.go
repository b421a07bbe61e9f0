package tiktok

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

const ssrScriptSelector = `script#__UNIVERSAL_DATA_FOR_REHYDRATION__`

// extractUniversalData finds and parses the __UNIVERSAL_DATA_FOR_REHYDRATION__
// JSON embedded in TikTok's server-rendered HTML.
func extractUniversalData(htmlBody []byte) (universalData, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBody))
	if err != nil {
		return universalData{}, fmt.Errorf("%w: parse profile html: %v", ErrInvalidResponse, err)
	}

	raw := doc.Find(ssrScriptSelector).First().Text()
	if raw == "" {
		return universalData{}, fmt.Errorf("%w: rehydration script tag not found", ErrInvalidResponse)
	}

	var data universalData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return universalData{}, fmt.Errorf("%w: unmarshal ssr data: %v", ErrInvalidResponse, err)
	}
	return data, nil
}

// extractUserFromSSR pulls the Author from parsed SSR data.
func extractUserFromSSR(data universalData) (Author, error) {
	info := data.DefaultScope.UserDetail.UserInfo
	if info.User.UniqueID == "" {
		return Author{}, fmt.Errorf("%w: user data missing in ssr response", ErrNotFound)
	}
	return parseAuthor(info), nil
}

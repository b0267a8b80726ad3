package rag

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DocxLoader extracts text from .docx files preserving basic structure (Headers).
type DocxLoader struct{}

func NewDocxLoader() *DocxLoader {
	return &DocxLoader{}
}

func (l *DocxLoader) Load(path string) (string, error) {
	// A .docx file is a ZIP archive; the body lives in word/document.xml.
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open docx zip: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("invalid docx: word/document.xml not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	return parseDocxXML(rc)
}

// parseDocxXML streams the XML and emits one paragraph per <w:p>, separated
// by blank lines. Heading styles become Markdown heading prefixes.
func parseDocxXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var (
		result      strings.Builder
		paragraph   strings.Builder
		style       string
		inParagraph bool
		inTextNode  bool
	)

	for {
		t, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx body: %w", err)
		}

		switch se := t.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "p":
				inParagraph = true
				paragraph.Reset()
				style = ""
			case "pStyle":
				for _, attr := range se.Attr {
					if attr.Name.Local == "val" {
						style = attr.Value
					}
				}
			case "t":
				inTextNode = true
			case "tab":
				if inParagraph {
					paragraph.WriteByte('\t')
				}
			}

		case xml.CharData:
			if inParagraph && inTextNode {
				paragraph.Write(se)
			}

		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inTextNode = false
			case "p":
				if inParagraph {
					if text := paragraph.String(); strings.TrimSpace(text) != "" {
						result.WriteString(headingPrefix(style) + text + "\n\n")
					}
				}
				inParagraph = false
			}
		}
	}

	return result.String(), nil
}

// headingPrefix maps Word styles such as "Heading1" or "heading 2" to "# " / "## ".
func headingPrefix(style string) string {
	if !strings.Contains(strings.ToLower(style), "heading") {
		return ""
	}
	switch {
	case strings.Contains(style, "1"):
		return "# "
	case strings.Contains(style, "2"):
		return "## "
	case strings.Contains(style, "3"):
		return "### "
	}
	return ""
}

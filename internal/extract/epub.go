package extract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
)

type container struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// fromEPUB concatenates the text of the spine documents in reading order.
// Archives without a usable package document fall back to every (X)HTML
// file in name order.
func fromEPUB(filename string) (string, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	docs, err := spineDocuments(files)
	if err != nil || len(docs) == 0 {
		docs = htmlDocuments(files)
	}
	if len(docs) == 0 {
		return "", errors.New("no content documents in archive")
	}

	var chapters []string
	for _, name := range docs {
		f, ok := files[name]
		if !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", name, err)
		}
		text, err := fromHTML(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", name, err)
		}
		if text != "" {
			chapters = append(chapters, text)
		}
	}
	return strings.Join(chapters, "\n\n"), nil
}

func spineDocuments(files map[string]*zip.File) ([]string, error) {
	var c container
	if err := decodeXML(files, "META-INF/container.xml", &c); err != nil {
		return nil, err
	}
	if len(c.Rootfiles) == 0 {
		return nil, errors.New("container.xml lists no rootfile")
	}

	opfPath := c.Rootfiles[0].FullPath
	var pkg opfPackage
	if err := decodeXML(files, opfPath, &pkg); err != nil {
		return nil, err
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		hrefs[item.ID] = item.Href
	}

	base := path.Dir(opfPath)
	var out []string
	for _, ref := range pkg.Spine {
		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		if unescaped, err := url.PathUnescape(href); err == nil {
			href = unescaped
		}
		out = append(out, path.Clean(path.Join(base, href)))
	}
	return out, nil
}

func htmlDocuments(files map[string]*zip.File) []string {
	var out []string
	for name := range files {
		switch strings.ToLower(path.Ext(name)) {
		case ".xhtml", ".html", ".htm":
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func decodeXML(files map[string]*zip.File, name string, v any) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("%s not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(io.LimitReader(rc, 8<<20)).Decode(v)
}

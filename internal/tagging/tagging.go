// Package tagging writes descriptive metadata into downloaded audio files.
// Tags always come from the playlist record, never from the candidate the
// file was fetched from.
package tagging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"

	"github.com/dvallejo/tunesync/internal/domain"
	"github.com/dvallejo/tunesync/internal/httpclient"
)

// TagFile writes metadata tags to the audio file at filePath. albumArtData
// may be nil; the file is valid without embedded artwork.
func TagFile(filePath string, record domain.TrackRecord, albumArtData []byte) error {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".mp3":
		return tagMP3(filePath, record, albumArtData)
	case ".flac":
		return tagFLAC(filePath, record, albumArtData)
	default:
		return fmt.Errorf("unsupported file format: %s", ext)
	}
}

func tagMP3(filePath string, record domain.TrackRecord, albumArtData []byte) error {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	tag.SetVersion(4)

	if record.Title != "" {
		tag.SetTitle(record.Title)
	}
	if len(record.Artists) > 0 {
		tag.AddTextFrame("TPE1", tag.DefaultEncoding(), strings.Join(record.Artists, "\x00"))
	}
	if record.Album != "" {
		tag.SetAlbum(record.Album)
	}
	if record.TrackNumber > 0 {
		tag.AddTextFrame(tag.CommonID("Track number/Position in set"), tag.DefaultEncoding(), fmt.Sprintf("%d", record.TrackNumber))
	}
	if record.DiscNumber > 0 {
		tag.AddTextFrame(tag.CommonID("Part of a set"), tag.DefaultEncoding(), fmt.Sprintf("%d", record.DiscNumber))
	}
	if record.ISRC != "" {
		tag.AddTextFrame(tag.CommonID("ISRC"), tag.DefaultEncoding(), record.ISRC)
	}

	if len(albumArtData) > 0 {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    detectMIME(albumArtData),
			PictureType: id3v2.PTFrontCover,
			Description: "Front Cover",
			Picture:     albumArtData,
		})
	}

	return tag.Save()
}

func tagFLAC(filePath string, record domain.TrackRecord, albumArtData []byte) error {
	f, err := flac.ParseFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to parse FLAC file: %w", err)
	}

	// Drop any existing comment/picture blocks; ours replace them.
	var kept []*flac.MetaDataBlock
	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment && block.Type != flac.Picture {
			kept = append(kept, block)
		}
	}
	f.Meta = kept

	comment := buildVorbisComment(record)
	commentBlock := comment.Marshal()
	f.Meta = append(f.Meta, &commentBlock)

	if len(albumArtData) > 0 {
		picture, err := flacpicture.NewFromImageData(
			flacpicture.PictureTypeFrontCover,
			"Front Cover",
			albumArtData,
			detectMIME(albumArtData),
		)
		if err != nil {
			return fmt.Errorf("failed to build picture block: %w", err)
		}
		pictureBlock := picture.Marshal()
		f.Meta = append(f.Meta, &pictureBlock)
	}

	if err := f.Save(filePath); err != nil {
		return fmt.Errorf("failed to save FLAC file: %w", err)
	}
	return nil
}

func buildVorbisComment(record domain.TrackRecord) *flacvorbis.MetaDataBlockVorbisComment {
	comment := flacvorbis.New()

	addField(comment, flacvorbis.FIELD_TITLE, record.Title)
	for _, artist := range record.Artists {
		addField(comment, flacvorbis.FIELD_ARTIST, artist)
	}
	addField(comment, flacvorbis.FIELD_ALBUM, record.Album)
	if record.TrackNumber > 0 {
		addField(comment, flacvorbis.FIELD_TRACKNUMBER, fmt.Sprintf("%d", record.TrackNumber))
	}
	if record.DiscNumber > 0 {
		addField(comment, "DISCNUMBER", fmt.Sprintf("%d", record.DiscNumber))
	}
	if record.ISRC != "" {
		addField(comment, "ISRC", record.ISRC)
	}

	return comment
}

func addField(comment *flacvorbis.MetaDataBlockVorbisComment, field, value string) {
	if value != "" {
		comment.Add(field, value)
	}
}

// detectMIME sniffs the image content type so PNG covers are not labelled
// image/jpeg.
func detectMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if idx := strings.Index(mime, ";"); idx != -1 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}

// DownloadImage fetches artwork bytes from a URL. An empty URL returns nil
// bytes without error.
func DownloadImage(ctx context.Context, hc *httpclient.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, nil
	}
	if hc == nil {
		hc = httpclient.NewClient(nil, 0)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := hc.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d (URL: %s)", resp.StatusCode, url)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return buf.Bytes(), nil
}

// Package persistence writes session reports to disk and reads them back.
package persistence

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path"
	"time"
)

// DataFile is a file holding a JSON-serialized result.
type DataFile struct {
	// Prefix is the data directory the file was written under. It is empty
	// for files written to an explicit path.
	Prefix string
	// Datatype is the kind of data in the file.
	Datatype string
	// UUID identifies the session that produced the data.
	UUID string
	// Path is the full path of the file.
	Path string
	// Size is the number of bytes written, before compression.
	Size int
}

// WriteDataFile writes data as gzipped JSON into a new file under
// datadir/datatype/YYYY/MM/DD and returns the written DataFile. The file name
// contains the current time and uuid, and existing files are never
// overwritten.
func WriteDataFile(datadir, datatype, uuid string, data interface{}) (*DataFile, error) {
	timestamp := time.Now().UTC()
	dir := path.Join(datadir, datatype, timestamp.Format("2006/01/02"))
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}
	filepath := path.Join(dir, datatype+"-"+
		timestamp.Format("20060102T150405.000000000Z")+"."+uuid+".json.gz")
	fp, err := os.OpenFile(filepath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	n, err := writeJSON(fp, data, true)
	if err != nil {
		fp.Close()
		os.Remove(filepath)
		return nil, err
	}
	if err := fp.Close(); err != nil {
		return nil, err
	}
	return &DataFile{
		Prefix:   datadir,
		Datatype: datatype,
		UUID:     uuid,
		Path:     filepath,
		Size:     n,
	}, nil
}

// writeJSON writes an indented JSON representation of data to w, gzipped if
// compress is true. It returns the uncompressed size.
func writeJSON(w io.Writer, data interface{}, compress bool) (int, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return 0, err
	}
	if !compress {
		return w.Write(b)
	}
	gz, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
	if err != nil {
		return 0, err
	}
	n, err := gz.Write(b)
	if err != nil {
		gz.Close()
		return n, err
	}
	return n, gz.Close()
}

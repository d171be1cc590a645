package main

import (
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var errBadPath = errors.New("invalid path")

// dataStore keeps uploaded drawings and exported programs under one directory.
type dataStore struct {
	dir string
	fs  http.Handler
}

func newDataStore(dir string) *dataStore {
	if dir == "" {
		dir = "."
	}
	return &dataStore{dir: dir, fs: http.FileServer(http.Dir(dir))}
}

// path maps a slash-separated name to a file inside the store. Names cannot
// climb out of it.
func (d *dataStore) path(name string) (string, error) {
	if filepath.Separator != '/' && strings.ContainsRune(name, filepath.Separator) {
		return "", errors.Wrapf(errBadPath, "'%s'", name)
	}
	clean := path.Clean("/" + name)
	if clean == "/" {
		return "", errors.Wrap(errBadPath, "empty name")
	}
	return filepath.Join(d.dir, filepath.FromSlash(clean)), nil
}

// create opens name for writing, making parent directories as needed.
func (d *dataStore) create(name string) (*os.File, error) {
	full, err := d.path(name)
	if err != nil {
		return nil, err
	}
	err = os.MkdirAll(filepath.Dir(full), 0755)
	if err != nil {
		return nil, errors.Wrap(err, "make data dir")
	}
	return os.Create(full)
}

func (d *dataStore) put(name string, r io.Reader) error {
	f, err := d.create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "write '%s'", name)
}

func (d *dataStore) open(name string) (*os.File, error) {
	full, err := d.path(name)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (d *dataStore) remove(name string) error {
	full, err := d.path(name)
	if err != nil {
		return err
	}
	return os.Remove(full)
}

// ServeHTTP serves the store with the /data prefix already stripped.
func (d *dataStore) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case "GET", "HEAD":
		d.fs.ServeHTTP(w, req)
	case "PUT":
		err := d.put(req.URL.Path, req.Body)
		if err != nil {
			storeError(w, req, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	case "DELETE":
		err := d.remove(req.URL.Path)
		if err != nil {
			storeError(w, req, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func storeError(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case errors.Cause(err) == errBadPath:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case os.IsNotExist(errors.Cause(err)):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		log.WithError(err).WithField("path", req.URL.Path).Error("data store")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

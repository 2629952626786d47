package api

import (
	"net/http"
	"os"
	"path"

	"github.com/labstack/echo/v4"
)

type File struct {
	Filename string `json:"filename"`
	Type     string `json:"type"`
}

func (a *API) GetFileLocations(c echo.Context) error {
	return c.JSON(http.StatusOK, a.Cfg.LocationDetails)
}

// GetDirectoryContents lists a directory under a localFile location.
// Remote locations cannot be browsed.
func (a *API) GetDirectoryContents(c echo.Context) error {
	locationName := c.Param("location")
	dirPath := c.Param("*")

	for i := range a.Cfg.LocationDetails {
		loc := a.Cfg.LocationDetails[i]
		if loc.LocationName != locationName {
			continue
		}
		if loc.LocationType != "localFile" {
			return c.String(http.StatusBadRequest, "directory listing is only supported for localFile locations")
		}
		entries, err := os.ReadDir(path.Join(loc.Path, dirPath))
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusBadRequest, err.Error())
		}
		filelist := make([]File, len(entries))
		for i, entry := range entries {
			filelist[i].Filename = entry.Name()
			if entry.IsDir() {
				filelist[i].Type = "directory"
			} else {
				filelist[i].Type = "file"
			}
		}
		return c.JSON(http.StatusOK, filelist)
	}
	return c.String(http.StatusBadRequest, "unknown location "+locationName)
}

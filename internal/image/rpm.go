package image

import (
	"fmt"
	"log"
	"strings"

	"github.com/zulandar/slipway/internal/models"
	"gorm.io/gorm"
)

// ParseNVR splits an RPM name-version-release string. The package name may
// itself contain dashes; version and release are the last two dash-separated
// segments.
func ParseNVR(nvr string) (name, version, release string, err error) {
	i := strings.LastIndex(nvr, "-")
	if i <= 0 {
		return "", "", "", fmt.Errorf("image: malformed nvr %q", nvr)
	}
	j := strings.LastIndex(nvr[:i], "-")
	if j <= 0 {
		return "", "", "", fmt.Errorf("image: malformed nvr %q", nvr)
	}
	name, version, release = nvr[:j], nvr[j+1:i], nvr[i+1:]
	if version == "" || release == "" {
		return "", "", "", fmt.Errorf("image: malformed nvr %q", nvr)
	}
	return name, version, release, nil
}

// AddRPMList attaches a list of N-V-R package strings to an image and
// returns how many were attached. RPM rows are deduplicated by NVR and
// shared between images; a malformed entry is logged and skipped, never
// fatal. Re-attaching an already-attached package is a no-op.
func AddRPMList(db *gorm.DB, hash string, nvrs []string) (int, error) {
	attached := 0
	for _, nvr := range nvrs {
		name, version, release, err := ParseNVR(nvr)
		if err != nil {
			log.Printf("image: skipping malformed rpm %q on %s", nvr, hash)
			continue
		}

		var rpm models.RPM
		if err := db.Where(models.RPM{NVR: nvr}).
			Attrs(models.RPM{Name: name, Version: version, Release: release}).
			FirstOrCreate(&rpm).Error; err != nil {
			return attached, fmt.Errorf("image: rpm %q: %w", nvr, err)
		}

		var count int64
		if err := db.Table("image_rpms").
			Where("image_hash = ? AND rpm_id = ?", hash, rpm.ID).
			Count(&count).Error; err != nil {
			return attached, fmt.Errorf("image: check rpm %q on %s: %w", nvr, hash, err)
		}
		if count > 0 {
			continue
		}
		if err := db.Exec("INSERT INTO image_rpms (image_hash, rpm_id) VALUES (?, ?)", hash, rpm.ID).Error; err != nil {
			return attached, fmt.Errorf("image: attach rpm %q to %s: %w", nvr, hash, err)
		}
		attached++
	}
	return attached, nil
}

// OrderedPackages returns the image's package list as NVR strings, ordered
// by package name then NVR.
func OrderedPackages(db *gorm.DB, hash string) ([]string, error) {
	var nvrs []string
	err := db.Table("rpms").
		Joins("JOIN image_rpms ON image_rpms.rpm_id = rpms.id").
		Where("image_rpms.image_hash = ?", hash).
		Order("rpms.name ASC, rpms.nvr ASC").
		Pluck("rpms.nvr", &nvrs).Error
	if err != nil {
		return nil, fmt.Errorf("image: packages for %s: %w", hash, err)
	}
	return nvrs, nil
}

package storage

import (
	"encoding/json"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decode leaves v untouched for an empty column.
func decode(s string, v any) error {
	if s == "" || s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

// toModel converts a domain entity to a database model.
func toModel(c domain.Certificate) (CertificateModel, error) {
	model := CertificateModel{
		Digest:         c.Digest,
		Kind:           string(c.Kind),
		Status:         string(c.Status),
		Category:       c.Category,
		Name:           c.Name,
		Manufacturer:   c.Manufacturer,
		Scheme:         c.Scheme,
		CertNumber:     c.CertNumber,
		NotValidBefore: c.NotValidBefore,
		NotValidAfter:  c.NotValidAfter,
		ReportLink:     c.ReportLink,
		TargetLink:     c.TargetLink,
		FileStatus:     c.State.FileStatus,
	}

	fields := []struct {
		dst *string
		v   any
	}{
		{&model.Vendors, c.Vendors},
		{&model.SecurityLevel, c.SecurityLevel},
		{&model.ProtectionProfiles, c.ProtectionProfiles},
		{&model.References, c.References},
		{&model.RelatedCVEs, c.RelatedCVEs},
		{&model.Provenance, c.Provenance},
		{&model.Report, c.Report},
		{&model.Target, c.Target},
		{&model.State, c.State},
	}
	for _, f := range fields {
		s, err := encode(f.v)
		if err != nil {
			return CertificateModel{}, err
		}
		*f.dst = s
	}

	for _, m := range c.Maintenance {
		model.Maintenance = append(model.Maintenance, MaintenanceModel{
			CertDigest: c.Digest,
			Date:       m.Date,
			Title:      m.Title,
			ReportLink: m.ReportLink,
			TargetLink: m.TargetLink,
		})
	}
	return model, nil
}

// toDomain converts a database model to a domain entity.
func toDomain(m CertificateModel) (*domain.Certificate, error) {
	c := &domain.Certificate{
		Digest:         m.Digest,
		Kind:           domain.Kind(m.Kind),
		Status:         domain.Status(m.Status),
		Category:       m.Category,
		Name:           m.Name,
		Manufacturer:   m.Manufacturer,
		Scheme:         m.Scheme,
		CertNumber:     m.CertNumber,
		NotValidBefore: m.NotValidBefore.UTC(),
		NotValidAfter:  m.NotValidAfter.UTC(),
		ReportLink:     m.ReportLink,
		TargetLink:     m.TargetLink,
		State:          domain.NewState(),
	}

	fields := []struct {
		src string
		v   any
	}{
		{m.Vendors, &c.Vendors},
		{m.SecurityLevel, &c.SecurityLevel},
		{m.ProtectionProfiles, &c.ProtectionProfiles},
		{m.References, &c.References},
		{m.RelatedCVEs, &c.RelatedCVEs},
		{m.Provenance, &c.Provenance},
		{m.Report, &c.Report},
		{m.Target, &c.Target},
		{m.State, &c.State},
	}
	for _, f := range fields {
		if err := decode(f.src, f.v); err != nil {
			return nil, err
		}
	}

	for _, mm := range m.Maintenance {
		c.Maintenance = append(c.Maintenance, domain.MaintenanceUpdate{
			Date:       mm.Date.UTC(),
			Title:      mm.Title,
			ReportLink: mm.ReportLink,
			TargetLink: mm.TargetLink,
		})
	}
	return c, nil
}

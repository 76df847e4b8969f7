package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tripdesk/backend/internal/apperr"
	"github.com/tripdesk/backend/internal/models"
)

const defaultCurrency = "INR"

// PackageInput carries package fields from a request. Nil pointers and nil
// slices leave the current value untouched.
type PackageInput struct {
	Name         *string          `json:"name"`
	Category     *string          `json:"category"`
	Destination  *string          `json:"destination"`
	Description  *string          `json:"description"`
	DurationDays *int             `json:"durationDays" validate:"omitempty,gte=0"`
	Price        *decimal.Decimal `json:"price"`
	Currency     *string          `json:"currency" validate:"omitempty,len=3"`
	Inclusions   []string         `json:"inclusions"`
	Exclusions   []string         `json:"exclusions"`
	Days         []models.Day     `json:"days"`
	Images       []models.Image   `json:"images"`
}

func (in PackageInput) apply(p *models.Package) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Category != nil {
		p.Category = strings.TrimSpace(*in.Category)
	}
	if in.Destination != nil {
		p.Destination = strings.TrimSpace(*in.Destination)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.DurationDays != nil {
		p.DurationDays = *in.DurationDays
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Currency != nil {
		p.Currency = strings.ToUpper(strings.TrimSpace(*in.Currency))
	}
	if in.Inclusions != nil {
		p.Inclusions = compactStrings(in.Inclusions)
	}
	if in.Exclusions != nil {
		p.Exclusions = compactStrings(in.Exclusions)
	}
	if in.Days != nil {
		p.Days = in.Days
	}
	if in.Images != nil {
		p.Images = in.Images
	}
}

type CustomizeInput struct {
	LeadID          string
	SourcePackageID string
	Edits           PackageInput
	// ExpectedVersion turns on optimistic locking for an in-place update.
	ExpectedVersion *int
	// RebaseOntoPackageID re-derives an existing customization from another
	// catalog package. It bumps the customization sequence.
	RebaseOntoPackageID string
}

type CustomizeResult struct {
	Package models.Package `json:"package"`
	Lead    models.Lead    `json:"lead"`
	Created bool           `json:"created"`
	// Superseded is the customization the lead owned before, if it was replaced.
	Superseded *string `json:"superseded,omitempty"`
}

// Customizer owns catalog packages and their per-lead customizations.
type Customizer struct {
	Tx       TxRunner
	Packages PackageStore
	Leads    LeadStore
	Logger   zerolog.Logger
	Now      Clock
}

// Customize derives or updates the lead's customized package from a source
// package and points the lead at it, all in one transaction.
func (c *Customizer) Customize(ctx context.Context, in CustomizeInput) (CustomizeResult, error) {
	if in.LeadID == "" || in.SourcePackageID == "" {
		var missing []string
		if in.LeadID == "" {
			missing = append(missing, "leadId")
		}
		if in.SourcePackageID == "" {
			missing = append(missing, "packageId")
		}
		return CustomizeResult{}, apperr.Missing(missing...)
	}

	var res CustomizeResult
	err := c.Tx.InTx(ctx, func(ctx context.Context) error {
		lead, err := c.Leads.GetLead(ctx, in.LeadID)
		if err != nil {
			return err
		}
		src, err := c.Packages.GetPackage(ctx, in.SourcePackageID)
		if err != nil {
			return err
		}
		root := src.RootID()

		var owned *models.Package
		if id, ok := lead.Source.CustomizedPackageID(); ok {
			p, err := c.Packages.GetPackage(ctx, id)
			switch {
			case err == nil:
				if p.CustomizedForLeadID != nil && *p.CustomizedForLeadID == lead.ID {
					owned = &p
				}
			case !apperr.Is(err, apperr.KindNotFound):
				return err
			}
		}

		if owned != nil && (owned.ID == src.ID || owned.RootID() == root) {
			pkg, err := c.updateInPlace(ctx, *owned, in.Edits, in.ExpectedVersion, in.RebaseOntoPackageID)
			if err != nil {
				return err
			}
			lead, err = c.pointLeadAt(ctx, lead, pkg)
			if err != nil {
				return err
			}
			res = CustomizeResult{Package: pkg, Lead: lead}
			return nil
		}

		pkg, err := c.derive(ctx, src, root, lead.ID, in.Edits)
		if err != nil {
			return err
		}
		if owned != nil && owned.SupersededAt == nil {
			now := c.Now.now()
			owned.SupersededAt = &now
			owned.Version++
			owned.UpdatedAt = now
			if err := c.Packages.UpdatePackage(ctx, *owned); err != nil {
				return err
			}
			res.Superseded = &owned.ID
		}
		lead, err = c.pointLeadAt(ctx, lead, pkg)
		if err != nil {
			return err
		}
		res.Package, res.Lead, res.Created = pkg, lead, true
		return nil
	})
	if err != nil {
		return CustomizeResult{}, err
	}
	c.Logger.Info().
		Str("lead_id", res.Lead.ID).
		Str("package_id", res.Package.ID).
		Bool("created", res.Created).
		Int("sequence", res.Package.CustomizationSequence).
		Msg("package customized")
	return res, nil
}

// UpdateCustomized edits a customized package in place and makes sure its
// owning lead points at it.
func (c *Customizer) UpdateCustomized(ctx context.Context, packageID string, edits PackageInput, expectedVersion *int) (CustomizeResult, error) {
	var res CustomizeResult
	err := c.Tx.InTx(ctx, func(ctx context.Context) error {
		pkg, err := c.Packages.GetPackage(ctx, packageID)
		if err != nil {
			return err
		}
		if !pkg.IsCustomized || pkg.CustomizedForLeadID == nil {
			return apperr.Validation("Package is not a customized package")
		}
		if pkg.SupersededAt != nil {
			return apperr.Conflict("Customized package has been superseded")
		}
		lead, err := c.Leads.GetLead(ctx, *pkg.CustomizedForLeadID)
		if err != nil {
			return err
		}
		pkg, err = c.updateInPlace(ctx, pkg, edits, expectedVersion, "")
		if err != nil {
			return err
		}
		lead, err = c.pointLeadAt(ctx, lead, pkg)
		if err != nil {
			return err
		}
		res = CustomizeResult{Package: pkg, Lead: lead}
		return nil
	})
	return res, err
}

func (c *Customizer) derive(ctx context.Context, src models.Package, root, leadID string, edits PackageInput) (models.Package, error) {
	now := c.Now.now()
	pkg := models.Package{
		ID:                    uuid.NewString(),
		Category:              src.Category,
		Destination:           src.Destination,
		Description:           src.Description,
		DurationDays:          src.DurationDays,
		Price:                 src.Price,
		Currency:              src.Currency,
		Inclusions:            append([]string(nil), src.Inclusions...),
		Exclusions:            append([]string(nil), src.Exclusions...),
		Days:                  append([]models.Day(nil), src.Days...),
		Images:                append([]models.Image(nil), src.Images...),
		IsCustomized:          true,
		OriginalPackageID:     &root,
		CustomizedForLeadID:   &leadID,
		CustomizationSequence: 1,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	pkg.Name = src.Name
	edits.apply(&pkg)
	pkg.BaseName = models.StripCustomizedSuffix(pkg.Name)
	pkg.Name = models.CustomizedDisplayName(pkg.BaseName, pkg.CustomizationSequence)
	if err := finishPackage(&pkg); err != nil {
		return models.Package{}, err
	}
	if err := c.Packages.CreatePackage(ctx, pkg); err != nil {
		return models.Package{}, err
	}
	return pkg, nil
}

func (c *Customizer) updateInPlace(ctx context.Context, pkg models.Package, edits PackageInput, expectedVersion *int, rebaseOnto string) (models.Package, error) {
	if expectedVersion != nil && *expectedVersion != pkg.Version {
		return models.Package{}, apperr.Conflict("Customized package was modified by someone else")
	}
	if rebaseOnto != "" {
		target, err := c.Packages.GetPackage(ctx, rebaseOnto)
		if err != nil {
			return models.Package{}, err
		}
		newRoot := target.RootID()
		if pkg.OriginalPackageID == nil || *pkg.OriginalPackageID != newRoot {
			pkg.OriginalPackageID = &newRoot
			pkg.CustomizationSequence++
		}
	}

	base := pkg.BaseName
	if edits.Name != nil {
		base = models.StripCustomizedSuffix(*edits.Name)
	}
	edits.apply(&pkg)
	pkg.BaseName = base
	if pkg.CustomizationSequence < 1 {
		pkg.CustomizationSequence = 1
	}
	pkg.Name = models.CustomizedDisplayName(pkg.BaseName, pkg.CustomizationSequence)
	if err := finishPackage(&pkg); err != nil {
		return models.Package{}, err
	}
	pkg.Version++
	pkg.UpdatedAt = c.Now.now()
	if err := c.Packages.UpdatePackage(ctx, pkg); err != nil {
		return models.Package{}, err
	}
	return pkg, nil
}

func (c *Customizer) pointLeadAt(ctx context.Context, lead models.Lead, pkg models.Package) (models.Lead, error) {
	lead.Source = models.CustomizedSource(pkg.ID)
	lead.PackageName = pkg.Name
	lead.UpdatedAt = c.Now.now()
	if err := c.Leads.UpdateLead(ctx, lead); err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

// finishPackage sanitizes itinerary content and checks required fields.
func finishPackage(p *models.Package) error {
	var missing []string
	if p.BaseName == "" {
		missing = append(missing, "name")
	}
	if p.Category == "" {
		missing = append(missing, "category")
	}
	if p.Destination == "" {
		missing = append(missing, "destination")
	}
	if p.Description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return apperr.Missing(missing...)
	}
	if p.Price.IsNegative() {
		return apperr.Validation("Invalid package", apperr.FieldError{Field: "price", Message: "must not be negative"})
	}
	if p.Currency == "" {
		p.Currency = defaultCurrency
	}
	days, err := SanitizeDays(p.Days)
	if err != nil {
		return err
	}
	p.Days = ApplyDayDefaults(days)
	p.Images = SanitizeImages(p.Images)
	if p.Inclusions == nil {
		p.Inclusions = []string{}
	}
	if p.Exclusions == nil {
		p.Exclusions = []string{}
	}
	if p.DurationDays == 0 {
		p.DurationDays = len(p.Days)
	}
	return nil
}

// catalog CRUD

func (c *Customizer) CreateCatalogPackage(ctx context.Context, in PackageInput) (models.Package, error) {
	now := c.Now.now()
	pkg := models.Package{ID: uuid.NewString(), Version: 1, CreatedAt: now, UpdatedAt: now}
	in.apply(&pkg)
	pkg.BaseName = models.StripCustomizedSuffix(pkg.Name)
	pkg.Name = pkg.BaseName
	if err := finishPackage(&pkg); err != nil {
		return models.Package{}, err
	}
	if err := c.Packages.CreatePackage(ctx, pkg); err != nil {
		return models.Package{}, err
	}
	return pkg, nil
}

func (c *Customizer) UpdateCatalogPackage(ctx context.Context, id string, in PackageInput, expectedVersion *int) (models.Package, error) {
	var out models.Package
	err := c.Tx.InTx(ctx, func(ctx context.Context) error {
		pkg, err := c.Packages.GetPackage(ctx, id)
		if err != nil {
			return err
		}
		if pkg.IsCustomized {
			return apperr.Validation("Customized packages are edited through /customized-packages/:id")
		}
		if expectedVersion != nil && *expectedVersion != pkg.Version {
			return apperr.Conflict("Package was modified by someone else")
		}
		in.apply(&pkg)
		pkg.BaseName = models.StripCustomizedSuffix(pkg.Name)
		pkg.Name = pkg.BaseName
		if err := finishPackage(&pkg); err != nil {
			return err
		}
		pkg.Version++
		pkg.UpdatedAt = c.Now.now()
		if err := c.Packages.UpdatePackage(ctx, pkg); err != nil {
			return err
		}
		out = pkg
		return nil
	})
	return out, err
}

func (c *Customizer) GetPackage(ctx context.Context, id string) (models.Package, error) {
	return c.Packages.GetPackage(ctx, id)
}

func (c *Customizer) ListPackages(ctx context.Context, f models.PackageFilter) ([]models.Package, error) {
	return c.Packages.ListPackages(ctx, f)
}

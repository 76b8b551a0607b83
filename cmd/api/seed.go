package main

import (
	"context"
	"errors"
	"log"

	"inventra-api/internal/config"
	"inventra-api/internal/model"
	"inventra-api/internal/repository"

	"gorm.io/gorm"
)

// seedPrivilegesRolesAndAdmin creates default privileges, roles, and the admin user if they don't exist
func seedPrivilegesRolesAndAdmin(ctx context.Context, db *gorm.DB, cfg *config.Config) {
	privilegeRepo := repository.NewPrivilegeRepo(db)
	userRepo := repository.NewUserRepo(db)
	roleRepo := repository.NewRoleRepo(db)

	// 1. Seed privileges first
	if err := privilegeRepo.SeedDefaults(ctx); err != nil {
		log.Printf("Warning: Failed to seed privileges: %v", err)
	}

	// 2. Seed roles
	if err := roleRepo.SeedDefaults(ctx); err != nil {
		log.Printf("Warning: Failed to seed roles: %v", err)
	}

	// 3. Assign privileges to roles that have none yet
	allPrivileges, err := privilegeRepo.FindAll(ctx)
	if err != nil {
		log.Printf("Warning: Failed to load privileges: %v", err)
		return
	}
	for _, def := range model.DefaultRoles {
		role, err := roleRepo.FindByCode(ctx, def.Code)
		if err != nil || len(role.Privileges) > 0 {
			continue
		}
		grants := model.DefaultRoleGrants(role.Code, allPrivileges)
		if err := roleRepo.ReplacePrivileges(ctx, role, grants); err != nil {
			log.Printf("Warning: Failed to assign privileges to %s: %v", role.Code, err)
			continue
		}
		log.Printf("%s role assigned %d privileges", role.Code, len(grants))
	}

	// 4. Create default admin user
	_, err = userRepo.FindByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		log.Printf("Warning: Failed to look up admin user: %v", err)
		return
	}

	adminRole, err := roleRepo.FindByCode(ctx, model.RoleAdmin)
	if err != nil {
		log.Printf("Warning: Admin role missing: %v", err)
		return
	}

	admin := &model.User{
		Email:    cfg.AdminEmail,
		FullName: "Administrator",
		RoleID:   &adminRole.ID,
		IsActive: true,
	}
	admin.CreatedBy = "system"
	admin.UpdatedBy = "system"

	if err := admin.SetPassword(cfg.AdminPassword); err != nil {
		log.Printf("Warning: Failed to hash admin password: %v", err)
		return
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		log.Printf("Warning: Failed to create admin user: %v", err)
		return
	}
	log.Printf("Admin user created: %s (ADMIN)", cfg.AdminEmail)
}

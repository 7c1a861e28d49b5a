package shippingdb

import "github.com/BearBump/CarrierBox/internal/models"

// SeedUser is one row of the static credential store and account directory.
type SeedUser struct {
	models.Credential
	Name    string
	Surname string
}

// DefaultUsers is the demo seed. Passwords are plaintext on purpose.
func DefaultUsers() []SeedUser {
	return []SeedUser{
		{Credential: models.Credential{UserName: "admin", Password: "password"}, Name: "Khosrou (Khoos)", Surname: "Golzad"},
		{Credential: models.Credential{UserName: "user1", Password: "pass123"}, Name: "Dirk Jan", Surname: "van Lonkhuyzen"},
		{Credential: models.Credential{UserName: "demo", Password: "demo123"}, Name: "Mani", Surname: "Singh"},
	}
}

// FindAccount looks up the account directory. The directory is read-only, no lock needed.
func (s *Store) FindAccount(username string) (models.Account, bool) {
	a, ok := s.accounts[username]
	return a, ok
}

func (s *Store) checkCredentials(username, password string) bool {
	stored, ok := s.credentials[username]
	return ok && stored == password
}

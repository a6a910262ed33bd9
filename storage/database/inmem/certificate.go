package inmemdb

import (
	"context"

	"github.com/trezcool/elimu/core/certificate"
)

type certificateRepository struct {
	db *DB
}

func NewCertificateRepository(db *DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) CreateCertificate(_ context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.certificates {
		if existing.EnrollmentID == cert.EnrollmentID {
			return certificate.Certificate{}, certificate.ErrAlreadyIssued
		}
	}
	cert.ID = repo.db.nextPK()
	repo.db.certificates[cert.ID] = &cert
	return cert, nil
}

func (repo *certificateRepository) GetByEnrollmentID(_ context.Context, enrollmentID int) (certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, cert := range repo.db.certificates {
		if cert.EnrollmentID == enrollmentID {
			return *cert, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) GetByPublicID(_ context.Context, publicID string) (certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, cert := range repo.db.certificates {
		if cert.PublicID == publicID {
			return *cert, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

package repository

import (
	"encoding/json"

	"github.com/jackc/pgx/v5"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (CompoundDocument, error) {
	var doc CompoundDocument
	var frontmatterJSON []byte
	err := row.Scan(
		&doc.ID, &doc.TenantKey.Project, &doc.TenantKey.Branch, &doc.TenantKey.PathHash,
		&doc.FilePath, &doc.Title, &doc.DocType, &doc.PromotionLevel,
		&frontmatterJSON, &doc.BodyHash, &doc.CreatedAt, &doc.UpdatedAt, &doc.CommitHash,
	)
	if err != nil {
		return CompoundDocument{}, err
	}
	if len(frontmatterJSON) > 0 {
		_ = json.Unmarshal(frontmatterJSON, &doc.Frontmatter)
	}
	return doc, nil
}

func scanDocuments(rows pgx.Rows) ([]CompoundDocument, error) {
	var out []CompoundDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func scanRepoPath(row rowScanner) (RepoPath, error) {
	var rp RepoPath
	err := row.Scan(&rp.ID, &rp.TenantKey.Project, &rp.TenantKey.Branch, &rp.TenantKey.PathHash,
		&rp.AbsolutePath, &rp.LastAccessedAt)
	return rp, err
}

func scanRepoPaths(rows pgx.Rows) ([]RepoPath, error) {
	var out []RepoPath
	for rows.Next() {
		rp, err := scanRepoPath(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}

func scanBranch(row rowScanner) (Branch, error) {
	var b Branch
	err := row.Scan(&b.ID, &b.TenantKey.Project, &b.TenantKey.Branch, &b.TenantKey.PathHash,
		&b.Name, &b.LastAccessedAt)
	return b, err
}

func scanBranches(rows pgx.Rows) ([]Branch, error) {
	var out []Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

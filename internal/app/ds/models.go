package ds

// Models lists every table managed by AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&User{},
		&Submission{},
		&SubmissionDocument{},
		&PaymentOrder{},
	}
}

package main

type Reader struct {
	CardNumber  int64  `json:"cardNumber"`
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	DateOfBirth string `json:"dateOfBirth"`
}
